package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/ports"
	"tally/internal/storage/storetest"
)

func openTestStore(t *testing.T, now func() time.Time) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tally.bolt"), WithClock(now))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, now func() time.Time) ports.Store {
		return openTestStore(t, now)
	})
}

func TestKeyOrderFollowsNumericOrder(t *testing.T) {
	values := []int64{-1 << 62, -100, -1, 0, 1, 100, 1 << 62}
	for i := 1; i < len(values); i++ {
		a, b := key(values[i-1]), key(values[i])
		if string(a) >= string(b) {
			t.Fatalf("key(%d) must sort before key(%d)", values[i-1], values[i])
		}
		if getInt64(b) != values[i] {
			t.Fatalf("round trip of %d gave %d", values[i], getInt64(b))
		}
	}
}

func TestLatestSkipsNeighbouringChats(t *testing.T) {
	ctx := context.Background()
	clock := storetest.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := openTestStore(t, clock.Now)

	mine, err := s.InsertTransaction(ctx, core.Transaction{ChatID: -5, Amount: core.MustMoney("1"), Actor: "A"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := s.InsertTransaction(ctx, core.Transaction{ChatID: -4, Amount: core.MustMoney("2"), Actor: "A"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	latest, err := s.LatestTransaction(ctx, -5, nil)
	if err != nil || latest == nil || latest.ID != mine.ID {
		t.Fatalf("expected %d, got %+v (err=%v)", mine.ID, latest, err)
	}
	if none, err := s.LatestTransaction(ctx, -6, nil); err != nil || none != nil {
		t.Fatalf("expected nothing for empty chat, got %+v (err=%v)", none, err)
	}
}
