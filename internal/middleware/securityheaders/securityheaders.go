package securityheaders

import (
	"net/http"
	"sync/atomic"
)

// headerPair is a pre-computed header name + value.
type headerPair struct {
	Name  string
	Value string
}

// Fixed hardening set applied to every proxied response, in order.
var hardeningHeaders = []headerPair{
	{"Access-Control-Expose-Headers", "X-Request-ID"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "1; mode=block"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload"},
}

// Headers removed so the upstream's server software is not advertised.
var strippedHeaders = []string{
	"Server",
	"X-Powered-By",
}

// Hardener overwrites response headers on proxied API responses. The
// values always win over whatever the upstream set.
type Hardener struct {
	applied atomic.Int64
}

// Snapshot is a point-in-time copy of metrics.
type Snapshot struct {
	Applied     int64 `json:"applied"`
	HeaderCount int   `json:"header_count"`
}

// New creates a Hardener.
func New() *Hardener {
	return &Hardener{}
}

// Apply overwrites the hardening set on h. echoOrigin is the value for
// Access-Control-Allow-Origin as decided by the origin policy; an empty
// value still overwrites anything the upstream set. requestID is echoed
// in X-Request-ID.
func (c *Hardener) Apply(h http.Header, echoOrigin, requestID string) {
	c.applied.Add(1)

	h.Set("Access-Control-Allow-Origin", echoOrigin)
	for _, p := range hardeningHeaders {
		h.Set(p.Name, p.Value)
	}
	h.Set("X-Request-ID", requestID)
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")

	for _, name := range strippedHeaders {
		h.Del(name)
	}
}

// Snapshot returns a point-in-time copy of metrics.
func (c *Hardener) Snapshot() Snapshot {
	return Snapshot{
		Applied:     c.applied.Load(),
		HeaderCount: len(hardeningHeaders) + 4,
	}
}
