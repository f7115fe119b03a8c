package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/lock"
	tlog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage/memory"
	"tally/internal/storage/storetest"
)

const (
	testToken = "s3cret"
	testChat  = int64(-1001)
)

var t0 = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	clock   *storetest.Clock
	store   *memory.Store
	journal *services.Journal
	srv     *Server
}

func newFixture(t *testing.T, token string, pinger Pinger) *fixture {
	t.Helper()
	clock := storetest.NewClock(t0)
	store := memory.NewWithClock(clock.Now)
	locker := lock.NewLocal()
	f := &fixture{
		clock:   clock,
		store:   store,
		journal: services.NewJournal(store, locker, nil),
	}
	if pinger == nil {
		pinger = store
	}
	srv, err := NewServer(Config{
		Addr:        ":0",
		Store:       pinger,
		Settings:    services.NewSettings(store, locker, nil),
		Journal:     f.journal,
		Token:       token,
		RateLimit:   1000,
		ReportLimit: 2,
		Logger:      tlog.New(tlog.Config{Component: tlog.ComponentHTTP, Output: &bytes.Buffer{}}),
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	f.srv = srv
	t.Cleanup(func() { _ = f.srv.Shutdown(context.Background()) })
	return f
}

func (f *fixture) do(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) append(t *testing.T, amount, label, actor string) {
	t.Helper()
	tx := core.Transaction{ChatID: testChat, Amount: core.MustMoney(amount), Label: label, Actor: actor}
	if label != "" {
		q := decimal.NewFromInt(2)
		tx.Quantity = &q
	}
	if _, err := f.journal.Append(context.Background(), tx); err != nil {
		t.Fatalf("append: %v", err)
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error {
	return core.Unavailable("ping", errors.New("database is locked"))
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, testToken, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := f.do(t, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s missing middleware headers: %v", path, rr.Header())
		}
	}

	down := newFixture(t, testToken, downPinger{})
	if rr := down.do(t, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the store is down, got %d", rr.Code)
	}
}

func TestHealthReportsMiddlewareMetrics(t *testing.T) {
	f := newFixture(t, testToken, nil)
	f.do(t, "/.env", "")
	f.do(t, "/api/chats/-1001/summary", testToken)

	rr := f.do(t, "/healthz", "")
	var got healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "ok" || got.Metrics == nil {
		t.Fatalf("unexpected health body %s", rr.Body)
	}
	m := got.Metrics
	// the health request itself is counted
	if m.Requests != 3 || m.FailedRequests != 0 {
		t.Fatalf("unexpected request counters %+v", m)
	}
	if m.SuspiciousRequests != 1 || m.RateLimitHits != 0 || m.RateLimitClients != 1 {
		t.Fatalf("unexpected middleware counters %+v", m)
	}
}

func TestTrustedProxies(t *testing.T) {
	if _, err := NewServer(Config{Addr: ":0", TrustedProxies: []string{"not-a-cidr"}}); err == nil {
		t.Fatal("expected error for a malformed CIDR")
	}
	srv, err := NewServer(Config{
		Addr:           ":0",
		TrustedProxies: []string{"203.0.113.0/24"},
		Logger:         tlog.New(tlog.Config{Output: &bytes.Buffer{}}),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	if ip := srv.detector.ExtractClientIP(req); ip != "198.51.100.7" {
		t.Fatalf("expected forwarded client ip, got %s", ip)
	}
}

func TestSummaryRequiresToken(t *testing.T) {
	f := newFixture(t, testToken, nil)
	if rr := f.do(t, "/api/chats/-1001/summary", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	if rr := f.do(t, "/api/chats/-1001/summary", "wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rr.Code)
	}

	disabled := newFixture(t, "", nil)
	if rr := disabled.do(t, "/api/chats/-1001/summary", testToken); rr.Code != http.StatusNotFound {
		t.Fatalf("expected API to be unmounted, got %d", rr.Code)
	}
}

func TestSummaryRoundAndAll(t *testing.T) {
	f := newFixture(t, testToken, nil)
	f.append(t, "100", "", "Alice")
	f.clock.Advance(24 * time.Hour)
	f.append(t, "-50", "USD", "Bob")
	f.clock.Advance(time.Minute)
	f.append(t, "10", "", "Alice")
	f.clock.Advance(time.Minute)
	f.append(t, "0.10", "", "Carol")

	rr := f.do(t, "/api/chats/-1001/summary", testToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Scope != "round" || got.Window == nil || !got.Window.Start.Equal(t0.Truncate(24*time.Hour).Add(24*time.Hour)) {
		t.Fatalf("unexpected scope/window %+v %+v", got.Scope, got.Window)
	}
	if got.Total != "-39.90" || got.Count != 3 {
		t.Fatalf("unexpected round totals %s/%d", got.Total, got.Count)
	}
	if got.Elided != 1 || len(got.Entries) != 2 || got.Entries[0].Index != 2 || got.Entries[1].Running != "-39.90" {
		t.Fatalf("unexpected entries %+v (elided %d)", got.Entries, got.Elided)
	}
	if len(got.Categories) != 2 || got.Categories[0].Label != "USD" || got.Categories[0].Quantity != "2" {
		t.Fatalf("unexpected categories %+v", got.Categories)
	}
	if got.People[0].Actor != "Alice" || got.People[0].Total != "10.00" {
		t.Fatalf("unexpected ranking %+v", got.People)
	}

	rr = f.do(t, "/api/chats/-1001/summary?scope=all&limit=0", testToken)
	got = summaryResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Window != nil || got.Total != "60.10" || got.Count != 4 || len(got.Entries) != 0 || got.Elided != 4 {
		t.Fatalf("unexpected all-history summary %+v", got)
	}
}

func TestSummaryDoesNotCreateChats(t *testing.T) {
	f := newFixture(t, testToken, nil)
	rr := f.do(t, "/api/chats/-2002/summary", testToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for an unknown chat, got %d: %s", rr.Code, rr.Body)
	}
	var got summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 0 || got.Total != "0.00" {
		t.Fatalf("unexpected summary %+v", got)
	}
	if cfg, err := f.store.GetChatConfig(context.Background(), -2002); err != nil || cfg != nil {
		t.Fatalf("summary must not insert a config row, got %+v (err=%v)", cfg, err)
	}
}

func TestSummaryBadRequests(t *testing.T) {
	f := newFixture(t, testToken, nil)
	for _, path := range []string{
		"/api/chats/abc/summary",
		"/api/chats/0/summary",
		"/api/chats/-1001/summary?scope=week",
		"/api/chats/-1001/summary?limit=-1",
		"/api/chats/-1001/summary?limit=500",
	} {
		if rr := f.do(t, path, testToken); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rr.Code)
		}
	}
}

func TestSuspiciousPathsAreBlocked(t *testing.T) {
	f := newFixture(t, testToken, nil)
	if rr := f.do(t, "/.env", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
