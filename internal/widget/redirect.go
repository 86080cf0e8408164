package widget

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrRedirectConstruction means the callback URL could not be built after a
// successful verification. The caller must surface this instead of silently
// losing the result.
var ErrRedirectConstruction = errors.New("redirect construction failed")

// RedirectURL builds the post-verification redirect target: the base
// callback URL with the opaque payload attached as a URL-encoded JSON
// `result` query parameter.
func RedirectURL(base string, payload json.RawMessage) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: parse base %q: %v", ErrRedirectConstruction, base, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%w: base %q is not an absolute URL", ErrRedirectConstruction, base)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return "", fmt.Errorf("%w: invalid payload: %v", ErrRedirectConstruction, err)
	}

	q := u.Query()
	q.Set("result", compact.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CallbackBase picks the callback base for a request host: loopback hosts
// get the development base, everything else production.
func CallbackBase(prod, dev, requestHost string) string {
	host := requestHost
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return dev
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return dev
	}
	return prod
}
