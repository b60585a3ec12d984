package router

import "strings"

// Kind identifies the branch a request path belongs to.
type Kind int

const (
	// Robots serves the crawler exclusion file.
	Robots Kind = iota
	// HealthCheck answers the gateway's own liveness probe.
	HealthCheck
	// DashboardPassthrough forwards to the dashboard serving origin untouched.
	DashboardPassthrough
	// APIProxy forwards to the upstream cluster API.
	APIProxy
	// NotFound is everything outside the gateway prefix.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Robots:
		return "robots"
	case HealthCheck:
		return "health"
	case DashboardPassthrough:
		return "dashboard"
	case APIProxy:
		return "api-proxy"
	default:
		return "not-found"
	}
}

// Decision is the route classification for one request. Computed once,
// consumed once; downstream code switches on Kind and never re-inspects
// the raw path.
type Decision struct {
	Kind Kind
	// TargetPath is the sub-path after the gateway prefix. Set only for APIProxy.
	TargetPath string
}

// Classify maps a request path to a Decision. The rule order is load-bearing:
// a sub-path literally named "dashboard" must never be proxied, and the
// health route must never reach the upstream even if it collides with an
// upstream route.
func Classify(prefix, path string) Decision {
	if path == "/robots.txt" {
		return Decision{Kind: Robots}
	}
	if !strings.HasPrefix(path, prefix) {
		return Decision{Kind: NotFound}
	}
	rest := path[len(prefix):]
	switch {
	case rest == "" || rest == "/":
		return Decision{Kind: DashboardPassthrough}
	case rest == "/proxy-health":
		return Decision{Kind: HealthCheck}
	case strings.HasPrefix(rest, "/dashboard"):
		return Decision{Kind: DashboardPassthrough}
	default:
		return Decision{Kind: APIProxy, TargetPath: rest}
	}
}
