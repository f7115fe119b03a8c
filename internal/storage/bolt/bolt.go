// Package bolt is a ports.Store kept in a single BoltDB file.
//
// Transactions live under a composite key of chat, creation time and id so a
// cursor walks one chat's journal in order; a second bucket maps ids back to
// those keys.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"

	"tally/internal/core"
)

var (
	bucketConfig    = []byte("chat_config")
	bucketAdmins    = []byte("admins")
	bucketOperators = []byte("operators")
	bucketTxs       = []byte("transactions")
	bucketTxIndex   = []byte("transactions_by_id")
)

type Store struct {
	db  *bolt.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used to stamp new transactions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens or creates the database at path and ensures every bucket exists.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketConfig, bucketAdmins, bucketOperators, bucketTxs, bucketTxIndex} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(context.Context) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketTxs) == nil {
			return fmt.Errorf("bucket %s missing", bucketTxs)
		}
		return nil
	})
	if err != nil {
		return core.Unavailable("ping", err)
	}
	return nil
}

// putInt64 encodes v so that byte order matches numeric order.
func putInt64(b []byte, v int64) {
	binary.BigEndian.PutUint64(b, uint64(v)^(1<<63))
}

func getInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

func key(parts ...int64) []byte {
	k := make([]byte, 8*len(parts))
	for i, p := range parts {
		putInt64(k[i*8:], p)
	}
	return k
}

type configRecord struct {
	UTCOffset int    `json:"utc_offset"`
	DayStart  string `json:"day_start"`
	Currency  string `json:"currency"`
	Language  string `json:"language"`
}

func (s *Store) GetOrCreateChatConfig(_ context.Context, chatID int64) (core.ChatConfig, error) {
	var rec configRecord
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfig)
		if v := b.Get(key(chatID)); v != nil {
			return json.Unmarshal(v, &rec)
		}
		def := core.DefaultChatConfig(chatID)
		rec = configRecord{UTCOffset: def.UTCOffset, DayStart: def.DayStart.String(), Currency: def.Currency, Language: string(def.Language)}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key(chatID), data)
	})
	if err != nil {
		return core.ChatConfig{}, core.Unavailable("get or create chat config", err)
	}
	return rec.config(chatID)
}

func (s *Store) GetChatConfig(_ context.Context, chatID int64) (*core.ChatConfig, error) {
	var rec *configRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketConfig).Get(key(chatID))
		if v == nil {
			return nil
		}
		rec = &configRecord{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, core.Unavailable("get chat config", err)
	}
	if rec == nil {
		return nil, nil
	}
	cfg, err := rec.config(chatID)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (rec configRecord) config(chatID int64) (core.ChatConfig, error) {
	dayStart, err := core.ParseTimeOfDay(rec.DayStart)
	if err != nil {
		return core.ChatConfig{}, fmt.Errorf("chat %d: stored day start %q: %w", chatID, rec.DayStart, err)
	}
	return core.ChatConfig{
		ChatID:    chatID,
		UTCOffset: rec.UTCOffset,
		DayStart:  dayStart,
		Currency:  rec.Currency,
		Language:  core.Language(rec.Language),
	}, nil
}

func (s *Store) SaveChatConfig(_ context.Context, cfg core.ChatConfig) error {
	data, err := json.Marshal(configRecord{
		UTCOffset: cfg.UTCOffset,
		DayStart:  cfg.DayStart.String(),
		Currency:  cfg.Currency,
		Language:  string(cfg.Language),
	})
	if err != nil {
		return fmt.Errorf("encode chat config: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConfig).Put(key(cfg.ChatID), data)
	})
	if err != nil {
		return core.Unavailable("save chat config", err)
	}
	return nil
}

func (s *Store) GetAdmin(_ context.Context, userID int64) (*core.Admin, error) {
	var a *core.Admin
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketAdmins).Get(key(userID)); v != nil {
			a = &core.Admin{UserID: userID, ExpireAt: time.Unix(0, getInt64(v)).UTC()}
		}
		return nil
	})
	if err != nil {
		return nil, core.Unavailable("get admin", err)
	}
	return a, nil
}

func (s *Store) UpsertAdmin(_ context.Context, a core.Admin) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAdmins).Put(key(a.UserID), key(a.ExpireAt.UnixNano()))
	})
	if err != nil {
		return core.Unavailable("upsert admin", err)
	}
	return nil
}

func (s *Store) ListAdmins(context.Context) ([]core.Admin, error) {
	var out []core.Admin
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAdmins).ForEach(func(k, v []byte) error {
			out = append(out, core.Admin{UserID: getInt64(k), ExpireAt: time.Unix(0, getInt64(v)).UTC()})
			return nil
		})
	})
	if err != nil {
		return nil, core.Unavailable("list admins", err)
	}
	return out, nil
}

func (s *Store) GetOperator(_ context.Context, userID, chatID int64) (*core.Operator, error) {
	var op *core.Operator
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketOperators).Get(key(chatID, userID)); v != nil {
			op = &core.Operator{UserID: userID, ChatID: chatID, DisplayName: string(v)}
		}
		return nil
	})
	if err != nil {
		return nil, core.Unavailable("get operator", err)
	}
	return op, nil
}

func (s *Store) UpsertOperator(_ context.Context, op core.Operator) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOperators).Put(key(op.ChatID, op.UserID), []byte(op.DisplayName))
	})
	if err != nil {
		return core.Unavailable("upsert operator", err)
	}
	return nil
}

func (s *Store) DeleteOperator(_ context.Context, userID, chatID int64) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOperators)
		k := key(chatID, userID)
		existed = b.Get(k) != nil
		return b.Delete(k)
	})
	if err != nil {
		return false, core.Unavailable("delete operator", err)
	}
	return existed, nil
}

func (s *Store) ListOperators(_ context.Context, chatID int64) ([]core.Operator, error) {
	var out []core.Operator
	prefix := key(chatID)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketOperators).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			out = append(out, core.Operator{UserID: getInt64(k[8:]), ChatID: chatID, DisplayName: string(v)})
		}
		return nil
	})
	if err != nil {
		return nil, core.Unavailable("list operators", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}
