package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/lock"
	"tally/internal/storage/memory"
)

func appendTx(t *testing.T, f *fixture, chatID int64, amount string) core.Transaction {
	t.Helper()
	tx, err := f.journal.Append(context.Background(), core.Transaction{ChatID: chatID, Amount: core.MustMoney(amount), Actor: "Alice"})
	if err != nil {
		t.Fatalf("append %s: %v", amount, err)
	}
	f.clock.Advance(time.Minute)
	return tx
}

func TestAppendAndListExactSum(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	amounts := []string{"0.10", "0.20", "-0.05", "1000.01", "-999.99"}
	var want core.Money
	for _, a := range amounts {
		want = want.Add(core.MustMoney(a))
		appendTx(t, f, chatA, a)
	}

	txs, err := f.journal.List(ctx, chatA, nil)
	if err != nil || len(txs) != len(amounts) {
		t.Fatalf("expected %d transactions, got %d (err=%v)", len(amounts), len(txs), err)
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].CreatedAt.Before(txs[i-1].CreatedAt) {
			t.Fatalf("list not ascending at %d", i)
		}
	}
	if got := core.Summarize(txs).Total; !got.Equal(want) || got.String() != "0.27" {
		t.Fatalf("total %s, want %s", got, want)
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	q := decimal.NewFromInt(2)
	bads := []core.Transaction{
		{ChatID: chatA, Actor: "A"},
		{ChatID: chatA, Amount: core.MustMoney("1"), Quantity: &q, Actor: "A"},
		{ChatID: chatA, Amount: core.MustMoney("1"), Actor: ""},
	}
	for i, tx := range bads {
		if _, err := f.journal.Append(context.Background(), tx); !errors.Is(err, core.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if txs, _ := f.journal.List(context.Background(), chatA, nil); len(txs) != 0 {
		t.Fatalf("invalid appends must not write, got %+v", txs)
	}
	if len(f.publisher.types()) != 0 {
		t.Fatal("invalid appends must not publish")
	}
}

func TestUndoRemovesOnlyLatest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w := core.Window{Start: t0, End: t0.Add(core.RoundLength)}
	first := appendTx(t, f, chatA, "10")
	appendTx(t, f, chatB, "99")
	last := appendTx(t, f, chatA, "-3")

	undone, err := f.journal.Undo(ctx, chatA, w)
	if err != nil || undone.ID != last.ID {
		t.Fatalf("expected to undo %d, got %+v (err=%v)", last.ID, undone, err)
	}
	rest, _ := f.journal.List(ctx, chatA, nil)
	if len(rest) != 1 || rest[0].ID != first.ID {
		t.Fatalf("expected only first to remain, got %+v", rest)
	}
	if other, _ := f.journal.List(ctx, chatB, nil); len(other) != 1 {
		t.Fatalf("other chat must be untouched, got %+v", other)
	}
}

func TestUndoEmptyWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	appendTx(t, f, chatA, "10")
	tomorrow := core.Window{Start: t0.Add(core.RoundLength), End: t0.Add(2 * core.RoundLength)}

	if _, err := f.journal.Undo(ctx, chatA, tomorrow); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if txs, _ := f.journal.List(ctx, chatA, nil); len(txs) != 1 {
		t.Fatalf("empty undo must not mutate, got %+v", txs)
	}
}

func TestDeleteAllWindowVersusHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	appendTx(t, f, chatA, "1")
	f.clock.Advance(core.RoundLength)
	appendTx(t, f, chatA, "2")
	appendTx(t, f, chatA, "3")
	appendTx(t, f, chatB, "4")

	today := core.Window{Start: t0.Add(core.RoundLength), End: t0.Add(2 * core.RoundLength)}
	n, err := f.journal.DeleteAll(ctx, chatA, &today)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deleted in window, got %d (err=%v)", n, err)
	}
	left, _ := f.journal.List(ctx, chatA, nil)
	if len(left) != 1 || left[0].Amount.String() != "1.00" {
		t.Fatalf("rows outside the window must survive, got %+v", left)
	}

	n, err = f.journal.DeleteAll(ctx, chatA, nil)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 deleted overall, got %d (err=%v)", n, err)
	}
	if other, _ := f.journal.List(ctx, chatB, nil); len(other) != 1 {
		t.Fatalf("reset must not touch other chats, got %+v", other)
	}
}

func TestJournalEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := core.Window{Start: t0, End: t0.Add(core.RoundLength)}

	appendTx(t, f, chatA, "5")
	if _, err := f.journal.Undo(ctx, chatA, w); err != nil {
		t.Fatal(err)
	}
	if _, err := f.journal.DeleteAll(ctx, chatA, &w); err != nil {
		t.Fatal(err)
	}

	got := f.publisher.types()
	want := []core.EventType{core.EventAppended, core.EventUndone, core.EventReset}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	reset := f.publisher.events[2]
	if reset.Scope != core.ScopeRound || reset.Deleted != 0 || reset.ID == "" {
		t.Fatalf("unexpected reset event %+v", reset)
	}
}

func TestPublishFailureDoesNotFailAppend(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	tx := appendTx(t, f, chatA, "1")
	if tx.ID == 0 {
		t.Fatal("append must succeed when publishing fails")
	}
}

func TestConcurrentAppendsAndUndo(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	j := NewJournal(store, lock.NewLocal(), nil)
	w := core.Window{Start: time.Now().Add(-time.Hour), End: time.Now().Add(time.Hour)}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := j.Append(ctx, core.Transaction{ChatID: chatA, Amount: core.MustMoney("1"), Actor: "A"}); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := j.Undo(ctx, chatA, w); err != nil {
				t.Errorf("undo: %v", err)
			}
		}()
	}
	wg.Wait()

	txs, _ := j.List(ctx, chatA, nil)
	if len(txs) != 30 {
		t.Fatalf("expected 30 left after 20 undos, got %d", len(txs))
	}
}

func TestJournalStorageUnavailable(t *testing.T) {
	j := NewJournal(brokenStore{memory.New()}, lock.NewLocal(), nil)
	ctx := context.Background()

	_, err := j.Append(ctx, core.Transaction{ChatID: chatA, Amount: core.MustMoney("1"), Actor: "A"})
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable on append, got %v", err)
	}
	_, err = j.Undo(ctx, chatA, core.Window{Start: t0, End: t0.Add(core.RoundLength)})
	if !errors.Is(err, core.ErrStorageUnavailable) || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected storage unavailable on undo, got %v", err)
	}
}

func TestRoundScenario(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	store := memory.NewWithClock(func() time.Time { return clock })
	j := NewJournal(store, lock.NewLocal(), nil)
	settings := NewSettings(store, lock.NewLocal(), nil)

	cfg, err := settings.SetUTCOffset(ctx, chatA, 7)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Append(ctx, core.Transaction{ChatID: chatA, Amount: core.MustMoney("100.00"), Actor: "Alice"}); err != nil {
		t.Fatal(err)
	}
	clock = time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	one := decimal.NewFromInt(1)
	if _, err := j.Append(ctx, core.Transaction{ChatID: chatA, Amount: core.MustMoney("-50.00"), Label: "USD", Quantity: &one, Actor: "Bob"}); err != nil {
		t.Fatal(err)
	}

	w := core.CurrentWindow(cfg, time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC))
	round, err := j.List(ctx, chatA, &w)
	if err != nil || len(round) != 1 {
		t.Fatalf("expected 1 transaction in round, got %+v (err=%v)", round, err)
	}
	s := core.Summarize(round)
	usd := s.ByCategory["USD"]
	if s.Total.String() != "-50.00" || usd.Subtotal.String() != "-50.00" || !usd.Quantity.Equal(one) || usd.Count != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
