package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/lock"
	"tally/internal/storage/memory"
	"tally/internal/storage/storetest"
)

var t0 = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.JournalEvent
	err    error
}

func (p *recordingPublisher) PublishJournalEvent(_ context.Context, ev core.JournalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []core.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	clock     *storetest.Clock
	store     *memory.Store
	journal   *Journal
	roles     *RoleResolver
	settings  *Settings
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := storetest.NewClock(t0)
	store := memory.NewWithClock(clock.Now)
	locker := lock.NewLocal()
	pub := &recordingPublisher{}
	return &fixture{
		clock:     clock,
		store:     store,
		journal:   NewJournal(store, locker, pub),
		roles:     NewRoleResolver(store, locker, 1).WithClock(clock.Now),
		settings:  NewSettings(store, locker, nil),
		publisher: pub,
	}
}

// brokenStore fails every call the way a lost database connection would.
type brokenStore struct{ *memory.Store }

var errConnLost = errors.New("connection lost")

func (brokenStore) GetAdmin(context.Context, int64) (*core.Admin, error) {
	return nil, core.Unavailable("get admin", errConnLost)
}

func (brokenStore) InsertTransaction(context.Context, core.Transaction) (core.Transaction, error) {
	return core.Transaction{}, core.Unavailable("insert transaction", errConnLost)
}

func (brokenStore) LatestTransaction(context.Context, int64, *core.Window) (*core.Transaction, error) {
	return nil, core.Unavailable("latest transaction", errConnLost)
}

func (brokenStore) GetOrCreateChatConfig(context.Context, int64) (core.ChatConfig, error) {
	return core.ChatConfig{}, core.Unavailable("get chat config", errConnLost)
}
