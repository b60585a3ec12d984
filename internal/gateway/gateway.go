package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/kubegate/kubegate/internal/config"
	"github.com/kubegate/kubegate/internal/errors"
	"github.com/kubegate/kubegate/internal/logging"
	"github.com/kubegate/kubegate/internal/metrics"
	"github.com/kubegate/kubegate/internal/middleware"
	"github.com/kubegate/kubegate/internal/middleware/cors"
	"github.com/kubegate/kubegate/internal/middleware/securityheaders"
	"github.com/kubegate/kubegate/internal/proxy"
	"github.com/kubegate/kubegate/internal/router"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

const robotsBody = "User-agent: *\nDisallow: /"

// Gateway is the per-request decision pipeline. It is stateless across
// requests; all mutable configuration lives in the store snapshot read
// once at the top of ServeHTTP.
type Gateway struct {
	store     *config.Store
	forwarder *proxy.Forwarder
	hardener  *securityheaders.Hardener
	collector *metrics.Collector
}

// New creates a gateway serving requests against the store's current
// snapshot. The upstream transport is built once; CA bundle changes
// require a restart.
func New(store *config.Store, collector *metrics.Collector) *Gateway {
	snap := store.Snapshot()
	tcfg := proxy.DefaultTransportConfig
	tcfg.CAFile = snap.CAFile
	transport := proxy.NewRedirectTransport(proxy.NewTransport(tcfg), 0)

	return &Gateway{
		store:     store,
		forwarder: proxy.NewForwarder(transport, "kubegate/"+Version),
		hardener:  securityheaders.New(),
		collector: collector,
	}
}

// Handler wraps the pipeline with the ambient middleware chain.
func (g *Gateway) Handler() http.Handler {
	snap := g.store.Snapshot()
	chain := middleware.NewChain(
		middleware.RequestID(),
		middleware.Recovery(snap.Development()),
	)
	return chain.Then(g)
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)
	snap := g.store.Snapshot()

	if snap.Err != nil {
		g.configError(w, snap, requestID)
		return
	}

	policy := cors.ParsePolicy(snap.AllowedOrigin)

	// Preflight is answered before any routing; it never reaches the
	// upstream.
	if r.Method == http.MethodOptions {
		allowed := policy.Decide(r.Header.Get("Origin")).Allowed
		policy.HandlePreflight(w, r)
		if allowed {
			g.collector.RecordRequest("preflight", http.StatusNoContent)
		} else {
			g.collector.RecordCORSRejection()
			g.collector.RecordRequest("preflight", http.StatusForbidden)
		}
		return
	}

	decision := router.Classify(snap.Prefix, r.URL.Path)

	switch decision.Kind {
	case router.Robots:
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, robotsBody)
		g.collector.RecordRequest(decision.Kind.String(), http.StatusOK)

	case router.NotFound:
		http.NotFound(w, r)
		g.collector.RecordRequest(decision.Kind.String(), http.StatusNotFound)

	case router.HealthCheck:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"version":   Version,
			"env":       string(snap.Mode),
			"requestId": requestID,
		})
		g.collector.RecordRequest(decision.Kind.String(), http.StatusOK)

	case router.DashboardPassthrough:
		g.serveDashboard(w, r, snap, decision, requestID)

	case router.APIProxy:
		g.serveProxy(w, r, snap, policy, decision, requestID)
	}
}

// configError answers a request served against an invalid snapshot.
// The validation reason only leaks in development mode.
func (g *Gateway) configError(w http.ResponseWriter, snap *config.Resolved, requestID string) {
	logging.Error("request rejected by invalid configuration",
		zap.String("request_id", requestID),
		zap.Error(snap.Err),
	)
	envelope := errors.ErrConfiguration.WithRequestID(requestID)
	if snap.Development() {
		envelope = envelope.WithDetails(snap.Err.Error())
	}
	envelope.WriteJSON(w)
	g.collector.RecordRequest("config-error", http.StatusInternalServerError)
}

// serveDashboard forwards to the dashboard origin verbatim. No
// credential injection, no response hardening.
func (g *Gateway) serveDashboard(w http.ResponseWriter, r *http.Request, snap *config.Resolved, decision router.Decision, requestID string) {
	if snap.DashboardOrigin == nil {
		http.NotFound(w, r)
		g.collector.RecordRequest(decision.Kind.String(), http.StatusNotFound)
		return
	}

	if err := g.forwarder.Passthrough(w, r, snap.DashboardOrigin); err != nil {
		logging.Error("dashboard passthrough failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		envelope := errors.ErrGateway.WithRequestID(requestID)
		if snap.Development() {
			envelope = envelope.WithDetails(err.Error())
		}
		envelope.WriteJSON(w)
		g.collector.RecordUpstreamError()
		g.collector.RecordRequest(decision.Kind.String(), http.StatusBadGateway)
		return
	}
	g.collector.RecordRequest(decision.Kind.String(), http.StatusOK)
}

func (g *Gateway) serveProxy(w http.ResponseWriter, r *http.Request, snap *config.Resolved, policy cors.Policy, decision router.Decision, requestID string) {
	origin := r.Header.Get("Origin")

	// Under a strict policy a present, disallowed origin is rejected
	// before the upstream is contacted. An absent origin proceeds so
	// non-browser clients keep working.
	if policy.Strict() && origin != "" {
		if !policy.Decide(origin).Allowed {
			logging.Warn("origin rejected",
				zap.String("origin", origin),
				zap.String("request_id", requestID),
			)
			errors.ErrForbidden.WithRequestID(requestID).WriteJSON(w)
			g.collector.RecordCORSRejection()
			g.collector.RecordRequest(decision.Kind.String(), http.StatusForbidden)
			return
		}
	}

	sanitized := proxy.SanitizePath(decision.TargetPath)
	target := proxy.BuildTargetURL(snap.UpstreamURL, sanitized, r.URL.RawQuery)

	if proxy.IsUpgradeRequest(r) {
		logging.Info("websocket tunnel",
			zap.String("target", target.Redacted()),
			zap.String("request_id", requestID),
		)
		start := time.Now()
		hijacked, err := g.forwarder.Tunnel(w, r, target)
		if err != nil {
			logging.Error("websocket tunnel failed",
				zap.String("request_id", requestID),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Error(err),
			)
			g.collector.RecordUpstreamError()
			// Once the connection is hijacked the response is raw bytes
			// on the wire; the envelope can only be written before that.
			if !hijacked {
				envelope := errors.ErrGateway.WithRequestID(requestID)
				if snap.Development() {
					envelope = envelope.WithDetails(err.Error())
				}
				envelope.WriteJSON(w)
				g.collector.RecordRequest(decision.Kind.String(), http.StatusBadGateway)
			}
			return
		}
		g.collector.RecordRequest(decision.Kind.String(), http.StatusSwitchingProtocols)
		return
	}

	logging.Info("proxy start",
		zap.String("method", r.Method),
		zap.String("target", target.Redacted()),
		zap.String("client_ip", proxy.ClientIP(r)),
		zap.String("request_id", requestID),
	)

	start := time.Now()
	resp, err := g.forwarder.Forward(r, target, snap.BearerToken, requestID)
	if err != nil {
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err),
		}
		if snap.Development() {
			fields = append(fields, zap.ByteString("stack", debug.Stack()))
		}
		logging.Error("upstream request failed", fields...)

		envelope := errors.ErrGateway.WithRequestID(requestID)
		if snap.Development() {
			envelope = envelope.
				WithDetails(err.Error()).
				WithStack(string(debug.Stack()))
		}
		envelope.WriteJSON(w)
		g.collector.RecordUpstreamError()
		g.collector.RecordRequest(decision.Kind.String(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	// Upstream status passes through verbatim, including non-2xx.
	proxy.CopyHeaders(w.Header(), resp.Header)
	g.hardener.Apply(w.Header(), policy.Decide(origin).EchoOrigin, requestID)
	w.WriteHeader(resp.StatusCode)
	proxy.CopyBody(w, resp.Body)

	g.collector.RecordUpstream(r.Method, duration)
	g.collector.RecordRequest(decision.Kind.String(), resp.StatusCode)

	logging.Info("proxy finish",
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.String("request_id", requestID),
	)
}
