package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

// RedirectTransport wraps an http.RoundTripper and follows 3xx redirects
// up to a configurable maximum. Redirects are resolved inside the gateway
// and never surfaced to the client.
type RedirectTransport struct {
	inner        http.RoundTripper
	maxRedirects int

	followed atomic.Int64
}

// NewRedirectTransport creates a transport that follows 3xx redirects.
// maxRedirects defaults to 10 if <= 0.
func NewRedirectTransport(inner http.RoundTripper, maxRedirects int) *RedirectTransport {
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	return &RedirectTransport{
		inner:        inner,
		maxRedirects: maxRedirects,
	}
}

// RoundTrip implements http.RoundTripper with redirect following.
func (rt *RedirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var redirectCount int
	current := req

	for {
		resp, err := rt.inner.RoundTrip(current)
		if err != nil {
			return nil, err
		}

		if !isRedirect(resp.StatusCode) {
			return resp, nil
		}

		redirectCount++
		if redirectCount > rt.maxRedirects {
			return resp, nil
		}
		rt.followed.Add(1)

		loc := resp.Header.Get("Location")
		if loc == "" {
			return resp, nil
		}
		resp.Body.Close()

		nextURL, err := resolveRedirectURL(current.URL, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid redirect location %q: %w", loc, err)
		}

		method := current.Method
		if resp.StatusCode == http.StatusSeeOther {
			method = http.MethodGet
		}

		next, err := http.NewRequestWithContext(current.Context(), method, nextURL.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create redirect request: %w", err)
		}
		for k, vv := range req.Header {
			for _, v := range vv {
				next.Header.Add(k, v)
			}
		}
		current = next
	}
}

// Followed returns the number of redirects followed so far.
func (rt *RedirectTransport) Followed() int64 {
	return rt.followed.Load()
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveRedirectURL(base *url.URL, location string) (*url.URL, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	if loc.IsAbs() {
		return loc, nil
	}
	if strings.HasPrefix(location, "//") {
		loc.Scheme = base.Scheme
		return loc, nil
	}
	return base.ResolveReference(loc), nil
}
