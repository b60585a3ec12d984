package cors

import (
	"net/http"
	"net/url"
	"strings"
)

// Fixed header values advertised on preflight responses.
const (
	allowMethods  = "GET, POST, PUT, DELETE, OPTIONS, PATCH"
	allowHeaders  = "Authorization, Content-Type, X-CSRF-Token, X-Request-ID, Upgrade, Connection"
	exposeHeaders = "X-Request-ID"
	maxAge        = "86400"
)

// PolicyKind discriminates how the allowed-origin setting matches.
type PolicyKind int

const (
	Wildcard PolicyKind = iota
	ExactList
	SubdomainWildcard
)

// Policy is the parsed allowed-origin setting. Parsed once per config
// snapshot, consulted on every request.
type Policy struct {
	kind    PolicyKind
	origins []string // lower-cased, ExactList only
	domain  string   // lower-cased apex, SubdomainWildcard only
}

// ParsePolicy interprets the raw allowed-origin string:
// "*" matches everything, "*.example.com" matches the apex and any
// subdomain, anything else is a comma-separated list of exact origins.
func ParsePolicy(raw string) Policy {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return Policy{kind: Wildcard}
	}
	if strings.HasPrefix(raw, "*.") {
		return Policy{
			kind:   SubdomainWildcard,
			domain: strings.ToLower(raw[2:]),
		}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, strings.ToLower(o))
		}
	}
	return Policy{kind: ExactList, origins: origins}
}

// Kind returns the policy's match mode.
func (p Policy) Kind() PolicyKind {
	return p.kind
}

// Strict reports whether the policy rejects any origin at all. The
// wildcard policy never rejects.
func (p Policy) Strict() bool {
	return p.kind != Wildcard
}

// Decision is the outcome of matching one request origin.
type Decision struct {
	Allowed bool
	// EchoOrigin is the value to place in Access-Control-Allow-Origin:
	// "*" under the wildcard policy, otherwise the origin exactly as the
	// client sent it. Empty when disallowed.
	EchoOrigin string
}

// Decide matches a request's Origin header value against the policy.
// Matching is case-insensitive; the echoed value preserves the client's
// original casing.
func (p Policy) Decide(origin string) Decision {
	if p.kind == Wildcard {
		return Decision{Allowed: true, EchoOrigin: "*"}
	}
	if origin == "" {
		return Decision{}
	}

	switch p.kind {
	case ExactList:
		lower := strings.ToLower(origin)
		for _, allowed := range p.origins {
			if allowed == lower {
				return Decision{Allowed: true, EchoOrigin: origin}
			}
		}
	case SubdomainWildcard:
		host := originHostname(origin)
		if host == p.domain || strings.HasSuffix(host, "."+p.domain) {
			return Decision{Allowed: true, EchoOrigin: origin}
		}
	}
	return Decision{}
}

func originHostname(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		// Bare host without a scheme; strip any port manually.
		host := strings.ToLower(origin)
		if idx := strings.LastIndexByte(host, ':'); idx >= 0 && !strings.Contains(host[idx:], "]") {
			host = host[:idx]
		}
		return host
	}
	return strings.ToLower(u.Hostname())
}

// HandlePreflight answers an OPTIONS request without contacting the
// upstream. A disallowed or absent origin under a strict policy gets a
// bare 403 with no body; everything else gets 204 with the full header
// set.
func (p Policy) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	d := p.Decide(r.Header.Get("Origin"))
	if !d.Allowed {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", d.EchoOrigin)
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	h.Set("Access-Control-Expose-Headers", exposeHeaders)
	h.Set("Access-Control-Max-Age", maxAge)
	w.WriteHeader(http.StatusNoContent)
}
