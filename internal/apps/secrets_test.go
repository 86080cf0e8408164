package apps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verify-gateway/pkg/domain-errors"
)

func TestSecretRoundTrip(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	hash, err := HashSecret(secret)
	require.NoError(t, err)
	require.NotEqual(t, secret, hash)

	require.NoError(t, VerifySecret(secret, hash))
}

func TestVerifySecret_Mismatch(t *testing.T) {
	hash, err := HashSecret("right-secret")
	require.NoError(t, err)

	err = VerifySecret("wrong-secret", hash)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestHashSecret_Empty(t *testing.T) {
	_, err := HashSecret("")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
}
