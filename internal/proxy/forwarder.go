package proxy

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// TracingHeader is the correlation id header propagated to the upstream
// and echoed on responses.
const TracingHeader = "X-Request-ID"

// Forwarder issues outbound requests to the upstream cluster API and to
// the dashboard serving origin. A single attempt per request; no retries.
type Forwarder struct {
	transport http.RoundTripper
	userAgent string
}

// NewForwarder creates a forwarder. If transport is nil a redirect-following
// default transport is used.
func NewForwarder(transport http.RoundTripper, userAgent string) *Forwarder {
	if transport == nil {
		transport = NewRedirectTransport(DefaultTransport(), 0)
	}
	return &Forwarder{
		transport: transport,
		userAgent: userAgent,
	}
}

// BuildUpstreamRequest derives the outbound request: headers copied, Host
// rewritten to the upstream host, Authorization overwritten with the gateway
// credential when configured (the gateway is the sole credential source),
// tracing id set. Body is omitted for GET/HEAD and streamed unbuffered
// otherwise. The inbound context is attached so a client disconnect abandons
// the outbound call.
func (f *Forwarder) BuildUpstreamRequest(r *http.Request, target *url.URL, bearerToken, requestID string) *http.Request {
	var body io.ReadCloser
	contentLength := int64(0)
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
		contentLength = r.ContentLength
	}

	out := (&http.Request{
		Method:        r.Method,
		URL:           target,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          body,
		ContentLength: contentLength,
		Host:          target.Host,
	}).WithContext(r.Context())

	out.Header = make(http.Header, len(r.Header)+4)
	for k, vv := range r.Header {
		out.Header[k] = vv
	}
	removeHopHeaders(out.Header)

	out.Header.Set("User-Agent", f.userAgent)
	out.Header.Set(TracingHeader, requestID)
	if bearerToken != "" {
		out.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	if clientIP := ClientIP(r); clientIP != "" {
		if prior := out.Header.Get("X-Forwarded-For"); prior != "" {
			out.Header.Set("X-Forwarded-For", prior+", "+clientIP)
		} else {
			out.Header.Set("X-Forwarded-For", clientIP)
		}
	}
	if r.TLS != nil {
		out.Header.Set("X-Forwarded-Proto", "https")
	} else {
		out.Header.Set("X-Forwarded-Proto", "http")
	}
	out.Header.Set("X-Forwarded-Host", r.Host)

	return out
}

// Forward executes the outbound request. Redirects are handled inside the
// transport; any failure is returned as-is for the caller's single catch
// point to translate.
func (f *Forwarder) Forward(r *http.Request, target *url.URL, bearerToken, requestID string) (*http.Response, error) {
	return f.transport.RoundTrip(f.BuildUpstreamRequest(r, target, bearerToken, requestID))
}

// Passthrough forwards the request to the dashboard serving origin with the
// original path and query, no credential injection and no response
// hardening. The upstream response is copied verbatim.
func (f *Forwarder) Passthrough(w http.ResponseWriter, r *http.Request, origin *url.URL) error {
	target := *origin
	target.Path = singleJoiningSlash(origin.Path, r.URL.Path)
	target.RawQuery = r.URL.RawQuery

	var body io.ReadCloser
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	out := (&http.Request{
		Method:     r.Method,
		URL:        &target,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Body:       body,
		Host:       target.Host,
	}).WithContext(r.Context())

	out.Header = make(http.Header, len(r.Header))
	for k, vv := range r.Header {
		out.Header[k] = vv
	}
	removeHopHeaders(out.Header)

	resp, err := f.transport.RoundTrip(out)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	CopyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	CopyBody(w, resp.Body)
	return nil
}

// CopyHeaders copies headers from src to dst, dropping hop-by-hop headers.
func CopyHeaders(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append(dst[k][:0:0], vv...)
	}
	removeHopHeaders(dst)
}

// CopyBody streams a response body to the client, flushing as data arrives
// so streaming upstream responses are passed through without buffering.
func CopyBody(w http.ResponseWriter, body io.Reader) {
	if flusher, ok := w.(http.Flusher); ok {
		for {
			_, err := io.CopyN(w, body, 32*1024)
			flusher.Flush()
			if err != nil {
				return
			}
		}
	}
	io.Copy(w, body)
}

// ClientIP extracts the client address, preferring X-Forwarded-For.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Hop-by-hop headers that must not be forwarded
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(header http.Header) {
	for _, h := range hopHeaders {
		header.Del(h)
	}
}

// singleJoiningSlash joins two URL paths with a single slash
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
