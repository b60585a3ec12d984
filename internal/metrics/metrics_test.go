package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectorExposition(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("api-proxy", 200)
	c.RecordRequest("api-proxy", 200)
	c.RecordRequest("not-found", 404)
	c.RecordUpstream("GET", 120*time.Millisecond)
	c.RecordUpstreamError()
	c.RecordCORSRejection()

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Result().Body)
	out := string(body)

	for _, want := range []string{
		`kubegate_requests_total{decision="api-proxy",status="200"} 2`,
		`kubegate_requests_total{decision="not-found",status="404"} 1`,
		`kubegate_upstream_errors_total 1`,
		`kubegate_cors_rejections_total 1`,
		`kubegate_upstream_request_duration_seconds_count{method="GET"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
