// Package storetest holds the behaviour every ports.Store backend must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/ports"

	"github.com/shopspring/decimal"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Factory opens an empty store whose transaction timestamps come from now.
type Factory func(t *testing.T, now func() time.Time) ports.Store

// Run exercises a backend against the shared contract.
func Run(t *testing.T, open Factory) {
	t.Run("ChatConfig", func(t *testing.T) { testChatConfig(t, open) })
	t.Run("Principals", func(t *testing.T) { testPrincipals(t, open) })
	t.Run("Journal", func(t *testing.T) { testJournal(t, open) })
	t.Run("ConcurrentConfigCreate", func(t *testing.T) { testConcurrentConfigCreate(t, open) })
}

var epoch = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

func testChatConfig(t *testing.T, open Factory) {
	ctx := context.Background()
	s := open(t, time.Now)

	if missing, err := s.GetChatConfig(ctx, -100); err != nil || missing != nil {
		t.Fatalf("expected no row before first use, got %+v (err=%v)", missing, err)
	}
	if missing, _ := s.GetChatConfig(ctx, -100); missing != nil {
		t.Fatalf("a plain read must not create the row, got %+v", missing)
	}

	cfg, err := s.GetOrCreateChatConfig(ctx, -100)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if cfg != core.DefaultChatConfig(-100) {
		t.Fatalf("expected defaults, got %+v", cfg)
	}

	cfg.UTCOffset = 7
	cfg.DayStart = core.TimeOfDay{Hour: 6, Minute: 30}
	cfg.Currency = "THB"
	cfg.Language = core.LangTH
	if err := s.SaveChatConfig(ctx, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetOrCreateChatConfig(ctx, -100)
	if err != nil || got != cfg {
		t.Fatalf("expected %+v, got %+v (err=%v)", cfg, got, err)
	}
	read, err := s.GetChatConfig(ctx, -100)
	if err != nil || read == nil || *read != cfg {
		t.Fatalf("expected %+v from plain read, got %+v (err=%v)", cfg, read, err)
	}

	other, err := s.GetOrCreateChatConfig(ctx, -200)
	if err != nil || other != core.DefaultChatConfig(-200) {
		t.Fatalf("chats must not share config, got %+v (err=%v)", other, err)
	}
}

func testPrincipals(t *testing.T, open Factory) {
	ctx := context.Background()
	s := open(t, time.Now)

	if a, err := s.GetAdmin(ctx, 42); err != nil || a != nil {
		t.Fatalf("expected no admin, got %+v (err=%v)", a, err)
	}
	expire := epoch.Add(48 * time.Hour)
	if err := s.UpsertAdmin(ctx, core.Admin{UserID: 42, ExpireAt: expire}); err != nil {
		t.Fatalf("upsert admin: %v", err)
	}
	later := expire.Add(24 * time.Hour)
	if err := s.UpsertAdmin(ctx, core.Admin{UserID: 42, ExpireAt: later}); err != nil {
		t.Fatalf("upsert admin again: %v", err)
	}
	a, err := s.GetAdmin(ctx, 42)
	if err != nil || a == nil || !a.ExpireAt.Equal(later) {
		t.Fatalf("expected expiry %s, got %+v (err=%v)", later, a, err)
	}
	if err := s.UpsertAdmin(ctx, core.Admin{UserID: 7, ExpireAt: expire}); err != nil {
		t.Fatalf("upsert admin: %v", err)
	}
	admins, err := s.ListAdmins(ctx)
	if err != nil || len(admins) != 2 {
		t.Fatalf("expected 2 admins, got %+v (err=%v)", admins, err)
	}

	if op, err := s.GetOperator(ctx, 5, -100); err != nil || op != nil {
		t.Fatalf("expected no operator, got %+v (err=%v)", op, err)
	}
	if err := s.UpsertOperator(ctx, core.Operator{UserID: 5, ChatID: -100, DisplayName: "Bob"}); err != nil {
		t.Fatalf("upsert operator: %v", err)
	}
	if err := s.UpsertOperator(ctx, core.Operator{UserID: 6, ChatID: -100, DisplayName: "Alice"}); err != nil {
		t.Fatalf("upsert operator: %v", err)
	}
	if err := s.UpsertOperator(ctx, core.Operator{UserID: 5, ChatID: -200, DisplayName: "Bob"}); err != nil {
		t.Fatalf("upsert operator: %v", err)
	}
	ops, err := s.ListOperators(ctx, -100)
	if err != nil || len(ops) != 2 || ops[0].DisplayName != "Alice" || ops[1].DisplayName != "Bob" {
		t.Fatalf("unexpected operators %+v (err=%v)", ops, err)
	}

	removed, err := s.DeleteOperator(ctx, 5, -100)
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v (err=%v)", removed, err)
	}
	if removed, _ := s.DeleteOperator(ctx, 5, -100); removed {
		t.Fatal("second removal must report false")
	}
	if op, _ := s.GetOperator(ctx, 5, -200); op == nil {
		t.Fatal("operator grant in another chat must survive")
	}
}

func testJournal(t *testing.T, open Factory) {
	ctx := context.Background()
	clock := NewClock(epoch)
	s := open(t, clock.Now)

	one := decimal.NewFromInt(1)
	insert := func(chatID int64, amount, label string, q *decimal.Decimal) core.Transaction {
		t.Helper()
		tx, err := s.InsertTransaction(ctx, core.Transaction{ChatID: chatID, Amount: core.MustMoney(amount), Label: label, Quantity: q, Actor: "Alice"})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		clock.Advance(time.Hour)
		return tx
	}

	first := insert(-100, "100", "", nil)
	if first.ID == 0 || !first.CreatedAt.Equal(epoch) {
		t.Fatalf("store must assign id and timestamp, got %+v", first)
	}
	second := insert(-100, "-50", "USD", &one)
	insert(-200, "7", "", nil)
	third := insert(-100, "0.01", "tip", nil)

	all, err := s.ListTransactions(ctx, -100, nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 transactions, got %d (err=%v)", len(all), err)
	}
	if all[0].ID != first.ID || all[2].ID != third.ID {
		t.Fatalf("expected ascending order, got %+v", all)
	}
	if all[1].Label != "USD" || all[1].Quantity == nil || !all[1].Quantity.Equal(one) || all[1].Amount.String() != "-50.00" {
		t.Fatalf("round trip lost data: %+v", all[1])
	}
	if all[0].Quantity != nil || all[0].Label != "" {
		t.Fatalf("absent label and quantity must stay absent: %+v", all[0])
	}

	w := &core.Window{Start: epoch.Add(time.Hour), End: epoch.Add(3 * time.Hour)}
	inWindow, err := s.ListTransactions(ctx, -100, w)
	if err != nil || len(inWindow) != 1 || inWindow[0].ID != second.ID {
		t.Fatalf("window must be half-open, got %+v (err=%v)", inWindow, err)
	}

	latest, err := s.LatestTransaction(ctx, -100, nil)
	if err != nil || latest == nil || latest.ID != third.ID {
		t.Fatalf("expected latest %d, got %+v (err=%v)", third.ID, latest, err)
	}
	empty := &core.Window{Start: epoch.Add(-48 * time.Hour), End: epoch.Add(-24 * time.Hour)}
	if none, err := s.LatestTransaction(ctx, -100, empty); err != nil || none != nil {
		t.Fatalf("expected none, got %+v (err=%v)", none, err)
	}

	ok, err := s.DeleteTransaction(ctx, third.ID)
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := s.DeleteTransaction(ctx, third.ID); ok {
		t.Fatal("deleting twice must report false")
	}

	n, err := s.DeleteTransactions(ctx, -100, w)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 deleted in window, got %d (err=%v)", n, err)
	}
	n, err = s.DeleteTransactions(ctx, -100, nil)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 deleted overall, got %d (err=%v)", n, err)
	}
	if rest, _ := s.ListTransactions(ctx, -200, nil); len(rest) != 1 {
		t.Fatalf("other chat must be untouched, got %+v", rest)
	}

	// Same-instant writes still order by id.
	a := insertAt(t, s, -300)
	b := insertAt(t, s, -300)
	if latest, _ := s.LatestTransaction(ctx, -300, nil); latest == nil || latest.ID != b.ID || b.ID <= a.ID {
		t.Fatalf("expected id tie-break, got %+v", latest)
	}
}

func insertAt(t *testing.T, s ports.Store, chatID int64) core.Transaction {
	t.Helper()
	tx, err := s.InsertTransaction(context.Background(), core.Transaction{ChatID: chatID, Amount: core.MustMoney("1"), Actor: "Bob"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return tx
}

func testConcurrentConfigCreate(t *testing.T, open Factory) {
	ctx := context.Background()
	s := open(t, time.Now)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.GetOrCreateChatConfig(ctx, -999); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent get or create: %v", err)
	}
}
