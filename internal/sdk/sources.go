package sdk

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Sources is the ordered list of CDN mirrors for the SDK bundle. It is
// immutable after construction; every load cycle walks it in order.
type Sources struct {
	urls []string
}

// NewSources validates and freezes the candidate list. An empty list is a
// configuration error, not a runtime condition to tolerate.
func NewSources(urls ...string) (Sources, error) {
	if len(urls) == 0 {
		return Sources{}, ErrNoCandidates
	}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			return Sources{}, fmt.Errorf("invalid candidate URL %q: %w", raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return Sources{}, fmt.Errorf("invalid candidate URL %q: missing scheme or host", raw)
		}
	}
	frozen := make([]string, len(urls))
	copy(frozen, urls)
	return Sources{urls: frozen}, nil
}

// Len returns the number of candidates.
func (s Sources) Len() int { return len(s.urls) }

// URL returns candidate i for the given cycle. Cycles after the first get a
// cache-busting query parameter so a poisoned CDN cache cannot fail every
// cycle identically.
func (s Sources) URL(i, cycle int) string {
	raw := s.urls[i]
	if cycle == 0 {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		// Validated at construction; keep the raw URL if something slipped through.
		return raw
	}
	q := u.Query()
	q.Set("cb", strconv.FormatInt(time.Now().UnixNano(), 36))
	u.RawQuery = q.Encode()
	return u.String()
}

// List returns a copy of the candidate URLs.
func (s Sources) List() []string {
	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}
