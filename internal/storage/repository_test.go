package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/ports"
	"tally/internal/storage/storetest"
)

func openTestRepo(t *testing.T, now func() time.Time) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "tally.db"), WithClock(now))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, now func() time.Time) ports.Store {
		return openTestRepo(t, now)
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := repo.GetOrCreateChatConfig(context.Background(), 1); err != nil {
		t.Fatalf("get or create: %v", err)
	}
	repo.Close()

	again, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	if err := again.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestClosedRepositoryReportsUnavailable(t *testing.T) {
	repo := openTestRepo(t, time.Now)
	repo.Close()

	_, err := repo.ListTransactions(context.Background(), 1, nil)
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	if err := repo.Ping(context.Background()); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable from ping, got %v", err)
	}
}
