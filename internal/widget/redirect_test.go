package widget

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectURL(t *testing.T) {
	t.Run("encodes the payload as a result query parameter", func(t *testing.T) {
		got, err := RedirectURL("https://example.com/callback", json.RawMessage(`{"nonce":"abc"}`))
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/callback?result=%7B%22nonce%22%3A%22abc%22%7D", got)
	})

	t.Run("compacts whitespace in the payload", func(t *testing.T) {
		got, err := RedirectURL("https://example.com/callback", json.RawMessage("{ \"nonce\": \"abc\" }"))
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/callback?result=%7B%22nonce%22%3A%22abc%22%7D", got)
	})

	t.Run("preserves existing query parameters", func(t *testing.T) {
		got, err := RedirectURL("https://example.com/callback?src=home", json.RawMessage(`{"a":1}`))
		require.NoError(t, err)
		assert.Contains(t, got, "src=home")
		assert.Contains(t, got, "result=%7B%22a%22%3A1%7D")
	})

	t.Run("relative base fails construction", func(t *testing.T) {
		_, err := RedirectURL("/callback", json.RawMessage(`{}`))
		require.ErrorIs(t, err, ErrRedirectConstruction)
	})

	t.Run("invalid payload fails construction", func(t *testing.T) {
		_, err := RedirectURL("https://example.com/callback", json.RawMessage(`{"broken`))
		require.ErrorIs(t, err, ErrRedirectConstruction)
	})
}

func TestCallbackBase(t *testing.T) {
	const (
		prod = "https://app.serenity.example/verified"
		dev  = "http://localhost:3000/verified"
	)

	tests := []struct {
		name string
		host string
		want string
	}{
		{"production host", "app.serenity.example", prod},
		{"localhost", "localhost", dev},
		{"localhost with port", "localhost:8080", dev},
		{"loopback IPv4", "127.0.0.1:3000", dev},
		{"loopback IPv6", "[::1]:3000", dev},
		{"public IP", "203.0.113.9", prod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CallbackBase(prod, dev, tt.host))
		})
	}
}
