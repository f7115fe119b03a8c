package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/core"
)

type fakeSheets struct {
	mu       sync.Mutex
	appended [][]any
	header   [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, vr.Values...)
		json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Journal!A2:K2"},
		})
	case r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"values": f.header})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &vr)
		f.header = vr.Values
		json.NewEncoder(w).Encode(map[string]any{})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	c, err := NewWithService(svc, "sheet-id", "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestAppendEvent(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ev := core.JournalEvent{
		ID:            "ev-1",
		Type:          core.EventAppended,
		ChatID:        -100,
		TransactionID: 7,
		Amount:        core.MustMoney("-50"),
		Label:         "USD",
		Quantity:      "1",
		Actor:         "Bob",
		OccurredAt:    time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC),
	}
	ref, err := c.AppendEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "Journal!A2:K2" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if len(fake.appended) != 1 {
		t.Fatalf("expected one row, got %v", fake.appended)
	}
	row := fake.appended[0]
	if row[0] != "ev-1" || row[2] != "appended" || row[5] != "-50.00" || row[8] != "Bob" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestEnsureHeaderWritesOnce(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if len(fake.header) != 1 || fake.header[0][0] != "Event ID" {
		t.Fatalf("expected header row, got %v", fake.header)
	}
	fake.header[0][0] = "Custom"
	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatalf("ensure header again: %v", err)
	}
	if fake.header[0][0] != "Custom" {
		t.Fatal("existing header must not be overwritten")
	}
}

func TestNewWithServiceRequiresSpreadsheet(t *testing.T) {
	if _, err := NewWithService(nil, " ", "x"); err == nil {
		t.Fatal("expected missing spreadsheet error")
	}
}
