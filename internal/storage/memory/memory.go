// Package memory is an in-process ports.Store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tally/internal/core"
)

type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	nextID    int64
	configs   map[int64]core.ChatConfig
	admins    map[int64]core.Admin
	operators map[operatorKey]core.Operator
	txs       []core.Transaction // ascending by CreatedAt then ID
}

type operatorKey struct{ user, chat int64 }

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock stamps new transactions with now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:       now,
		configs:   make(map[int64]core.ChatConfig),
		admins:    make(map[int64]core.Admin),
		operators: make(map[operatorKey]core.Operator),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error { return nil }

func (s *Store) GetOrCreateChatConfig(_ context.Context, chatID int64) (core.ChatConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[chatID]
	if !ok {
		cfg = core.DefaultChatConfig(chatID)
		s.configs[chatID] = cfg
	}
	return cfg, nil
}

func (s *Store) GetChatConfig(_ context.Context, chatID int64) (*core.ChatConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[chatID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (s *Store) SaveChatConfig(_ context.Context, cfg core.ChatConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ChatID] = cfg
	return nil
}

func (s *Store) GetAdmin(_ context.Context, userID int64) (*core.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[userID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) UpsertAdmin(_ context.Context, a core.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[a.UserID] = a
	return nil
}

func (s *Store) ListAdmins(context.Context) ([]core.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Admin, 0, len(s.admins))
	for _, a := range s.admins {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) GetOperator(_ context.Context, userID, chatID int64) (*core.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operators[operatorKey{userID, chatID}]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

func (s *Store) UpsertOperator(_ context.Context, op core.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operators[operatorKey{op.UserID, op.ChatID}] = op
	return nil
}

func (s *Store) DeleteOperator(_ context.Context, userID, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := operatorKey{userID, chatID}
	if _, ok := s.operators[key]; !ok {
		return false, nil
	}
	delete(s.operators, key)
	return true, nil
}

func (s *Store) ListOperators(_ context.Context, chatID int64) ([]core.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Operator
	for _, op := range s.operators {
		if op.ChatID == chatID {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	tx.ID = s.nextID
	tx.CreatedAt = s.now().UTC()
	if tx.Quantity != nil {
		q := *tx.Quantity
		tx.Quantity = &q
	}

	i := sort.Search(len(s.txs), func(i int) bool { return s.txs[i].CreatedAt.After(tx.CreatedAt) })
	s.txs = append(s.txs, core.Transaction{})
	copy(s.txs[i+1:], s.txs[i:])
	s.txs[i] = tx
	return tx, nil
}

func matches(tx core.Transaction, chatID int64, w *core.Window) bool {
	return tx.ChatID == chatID && (w == nil || w.Contains(tx.CreatedAt))
}

func (s *Store) LatestTransaction(_ context.Context, chatID int64, w *core.Window) (*core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.txs) - 1; i >= 0; i-- {
		if matches(s.txs[i], chatID, w) {
			tx := s.txs[i]
			return &tx, nil
		}
	}
	return nil, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.txs {
		if tx.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteTransactions(_ context.Context, chatID int64, w *core.Window) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.txs[:0]
	var n int64
	for _, tx := range s.txs {
		if matches(tx, chatID, w) {
			n++
			continue
		}
		kept = append(kept, tx)
	}
	s.txs = kept
	return n, nil
}

func (s *Store) ListTransactions(_ context.Context, chatID int64, w *core.Window) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if matches(tx, chatID, w) {
			out = append(out, tx)
		}
	}
	return out, nil
}
