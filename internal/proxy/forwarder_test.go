package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestBuildUpstreamRequestHeaders(t *testing.T) {
	f := NewForwarder(nil, "kubegate/test")
	target, _ := url.Parse("https://cluster-api.example.com/api/v1/pods")

	r := httptest.NewRequest("GET", "https://gw.example.com/kubernetes/api/v1/pods", nil)
	r.Header.Set("Authorization", "Bearer client-supplied")
	r.Header.Set("Accept", "application/json")
	r.Header.Set("Connection", "keep-alive")

	out := f.BuildUpstreamRequest(r, target, "secret-token", "req-42")

	if out.Host != "cluster-api.example.com" {
		t.Errorf("Host = %q, want upstream host", out.Host)
	}
	if got := out.Header.Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("Authorization = %q, gateway credential must override client value", got)
	}
	if got := out.Header.Get("User-Agent"); got != "kubegate/test" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := out.Header.Get(TracingHeader); got != "req-42" {
		t.Errorf("tracing header = %q", got)
	}
	if got := out.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept not copied, got %q", got)
	}
	if out.Header.Get("Connection") != "" {
		t.Error("hop-by-hop Connection header must be dropped")
	}
}

func TestBuildUpstreamRequestBodyRule(t *testing.T) {
	f := NewForwarder(nil, "kubegate/test")
	target, _ := url.Parse("https://cluster-api.example.com/api")

	get := httptest.NewRequest("GET", "https://gw/kubernetes/api", strings.NewReader("ignored"))
	if out := f.BuildUpstreamRequest(get, target, "", "id"); out.Body != nil {
		t.Error("GET request must have no body")
	}

	head := httptest.NewRequest("HEAD", "https://gw/kubernetes/api", strings.NewReader("ignored"))
	if out := f.BuildUpstreamRequest(head, target, "", "id"); out.Body != nil {
		t.Error("HEAD request must have no body")
	}

	post := httptest.NewRequest("POST", "https://gw/kubernetes/api", strings.NewReader("payload"))
	out := f.BuildUpstreamRequest(post, target, "", "id")
	if out.Body == nil {
		t.Fatal("POST request must carry the body stream")
	}
	b, _ := io.ReadAll(out.Body)
	if string(b) != "payload" {
		t.Errorf("body = %q", b)
	}
}

func TestBuildUpstreamRequestNoTokenNoAuth(t *testing.T) {
	f := NewForwarder(nil, "kubegate/test")
	target, _ := url.Parse("https://cluster-api.example.com/api")

	r := httptest.NewRequest("GET", "https://gw/kubernetes/api", nil)
	out := f.BuildUpstreamRequest(r, target, "", "id")
	if out.Header.Get("Authorization") != "" {
		t.Error("Authorization must be absent when no credential configured")
	}
}

func TestForwardRoundTrip(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "limit=5" {
			t.Errorf("query = %q, want limit=5", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pods-json"))
	}))
	defer upstream.Close()

	f := NewForwarder(DefaultTransport(), "kubegate/test")
	target, _ := url.Parse(upstream.URL + "/api/v1/pods?limit=5")

	r := httptest.NewRequest("GET", "https://gw/kubernetes/api/v1/pods?limit=5", nil)
	resp, err := f.Forward(r, target, "tok", "id")
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "pods-json" {
		t.Errorf("body = %q", body)
	}
}

func TestForwardFollowsRedirects(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved-here"))
	}))
	defer final.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirecting.Close()

	rt := NewRedirectTransport(DefaultTransport(), 5)
	f := NewForwarder(rt, "kubegate/test")
	target, _ := url.Parse(redirecting.URL)

	r := httptest.NewRequest("GET", "https://gw/kubernetes/x", nil)
	resp, err := f.Forward(r, target, "", "id")
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "moved-here" {
		t.Errorf("body = %q, redirect should be followed internally", body)
	}
	if rt.Followed() != 1 {
		t.Errorf("followed = %d, want 1", rt.Followed())
	}
}

func TestPassthroughVerbatim(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("passthrough must not inject credentials")
		}
		w.Header().Set("X-Static", "yes")
		w.Write([]byte("<html>dashboard</html>"))
	}))
	defer origin.Close()

	f := NewForwarder(DefaultTransport(), "kubegate/test")
	originURL, _ := url.Parse(origin.URL)

	r := httptest.NewRequest("GET", "https://gw/kubernetes/dashboard", nil)
	w := httptest.NewRecorder()
	if err := f.Passthrough(w, r, originURL); err != nil {
		t.Fatalf("Passthrough: %v", err)
	}
	if w.Body.String() != "<html>dashboard</html>" {
		t.Errorf("body = %q", w.Body.String())
	}
	if w.Header().Get("X-Static") != "yes" {
		t.Error("origin headers must be copied verbatim")
	}
	if w.Header().Get("X-Frame-Options") != "" {
		t.Error("passthrough responses must not be hardened")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:4312"
	if got := ClientIP(r); got != "203.0.113.9" {
		t.Errorf("ClientIP = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	if got := ClientIP(r); got != "198.51.100.1" {
		t.Errorf("ClientIP with XFF = %q", got)
	}
}
