package router

import "testing"

func TestClassify(t *testing.T) {
	const prefix = "/kubernetes"

	tests := []struct {
		path   string
		kind   Kind
		target string
	}{
		{"/robots.txt", Robots, ""},
		{"/", NotFound, ""},
		{"/other", NotFound, ""},
		{"/kube", NotFound, ""},
		{"/kubernetes", DashboardPassthrough, ""},
		{"/kubernetes/", DashboardPassthrough, ""},
		{"/kubernetes/proxy-health", HealthCheck, ""},
		{"/kubernetes/dashboard", DashboardPassthrough, ""},
		{"/kubernetes/dashboard/pods", DashboardPassthrough, ""},
		{"/kubernetes/dashboards", DashboardPassthrough, ""},
		{"/kubernetes/api/v1/pods", APIProxy, "/api/v1/pods"},
		{"/kubernetes/proxy-health/extra", APIProxy, "/proxy-health/extra"},
	}

	for _, tt := range tests {
		d := Classify(prefix, tt.path)
		if d.Kind != tt.kind {
			t.Errorf("Classify(%q) kind = %v, want %v", tt.path, d.Kind, tt.kind)
		}
		if d.TargetPath != tt.target {
			t.Errorf("Classify(%q) target = %q, want %q", tt.path, d.TargetPath, tt.target)
		}
	}
}

func TestClassifyDashboardNeverProxied(t *testing.T) {
	d := Classify("/kubernetes", "/kubernetes/dashboard/api/v1/pods")
	if d.Kind == APIProxy {
		t.Fatal("dashboard sub-path must never be proxied")
	}
}

func TestClassifyHealthNeverProxied(t *testing.T) {
	d := Classify("/kubernetes", "/kubernetes/proxy-health")
	if d.Kind != HealthCheck {
		t.Fatal("proxy-health must never reach the upstream")
	}
}

func TestKindString(t *testing.T) {
	kinds := map[Kind]string{
		Robots:               "robots",
		HealthCheck:          "health",
		DashboardPassthrough: "dashboard",
		APIProxy:             "api-proxy",
		NotFound:             "not-found",
	}
	for k, want := range kinds {
		if k.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, k.String(), want)
		}
	}
}
