package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()
	cases := []struct {
		method, target, agent string
		want                  bool
	}{
		{http.MethodGet, "/api/chats/1/summary", "curl/8.0", false},
		{http.MethodGet, "/healthz", "kube-probe/1.29", false},
		{http.MethodGet, "/.env", "", true},
		{http.MethodGet, "/wp-admin/setup.php", "", true},
		{http.MethodGet, "/api?q=../../etc/passwd", "", true},
		{http.MethodGet, "/", "sqlmap/1.7", true},
		{"TRACE", "/", "", true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, tc.target, nil)
		r.Header.Set("User-Agent", tc.agent)
		if got := d.DetectSuspiciousRequest(r); got != tc.want {
			t.Fatalf("%s %s (%s): got %v, want %v", tc.method, tc.target, tc.agent, got, tc.want)
		}
	}
	if got := d.GetMetrics().SuspiciousRequests; got != 5 {
		t.Fatalf("expected 5 suspicious requests, got %d", got)
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.1.2.3")
	if ip := d.ExtractClientIP(r); ip != "203.0.113.7" {
		t.Fatalf("trusted proxy: got %s", ip)
	}

	r.RemoteAddr = "198.51.100.1:5555"
	if ip := d.ExtractClientIP(r); ip != "198.51.100.1" {
		t.Fatalf("untrusted peer must not be able to spoof, got %s", ip)
	}

	r.RemoteAddr = "127.0.0.1:1"
	r.Header.Set("X-Forwarded-For", "garbage")
	r.Header.Set("X-Real-IP", "192.0.2.5")
	if ip := d.ExtractClientIP(r); ip != "192.0.2.5" {
		t.Fatalf("expected X-Real-IP fallback, got %s", ip)
	}
	if d.GetMetrics().InvalidIPAttempts != 1 {
		t.Fatalf("expected one invalid forwarded address")
	}
}

func TestDetectorMiddlewareBlocks(t *testing.T) {
	d := NewDetector()
	called := false
	h := d.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if rec.Code != http.StatusNotFound || called {
		t.Fatalf("expected blocked probe, got %d (called=%v)", rec.Code, called)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("missing headers: %v", rec.Header())
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must only be sent over TLS")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") != "max-age=31536000; includeSubDomains" {
		t.Fatalf("unexpected HSTS %q", rec.Header().Get("Strict-Transport-Security"))
	}
}
