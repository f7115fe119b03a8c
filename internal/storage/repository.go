// Package storage is the SQLite implementation of ports.Store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*SQLiteRepository)

// WithClock overrides the clock used to stamp new transactions.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) { r.now = now }
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.Unavailable("ping", err)
	}
	return nil
}

func (r *SQLiteRepository) GetOrCreateChatConfig(ctx context.Context, chatID int64) (core.ChatConfig, error) {
	def := core.DefaultChatConfig(chatID)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_config (chat_id, utc_offset, day_start, currency, language)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(chat_id) DO NOTHING`,
		def.ChatID, def.UTCOffset, def.DayStart.String(), def.Currency, string(def.Language))
	if err != nil {
		return core.ChatConfig{}, core.Unavailable("insert chat config", err)
	}

	cfg, err := r.GetChatConfig(ctx, chatID)
	if err != nil {
		return core.ChatConfig{}, err
	}
	if cfg == nil {
		return core.ChatConfig{}, core.Unavailable("select chat config", sql.ErrNoRows)
	}
	return *cfg, nil
}

func (r *SQLiteRepository) GetChatConfig(ctx context.Context, chatID int64) (*core.ChatConfig, error) {
	var (
		cfg      core.ChatConfig
		dayStart string
		lang     string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT chat_id, utc_offset, day_start, currency, language FROM chat_config WHERE chat_id = ?`,
		chatID).Scan(&cfg.ChatID, &cfg.UTCOffset, &dayStart, &cfg.Currency, &lang)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Unavailable("select chat config", err)
	}
	if cfg.DayStart, err = core.ParseTimeOfDay(dayStart); err != nil {
		return nil, fmt.Errorf("chat %d: stored day start %q: %w", chatID, dayStart, err)
	}
	cfg.Language = core.Language(lang)
	return &cfg, nil
}

func (r *SQLiteRepository) SaveChatConfig(ctx context.Context, cfg core.ChatConfig) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_config (chat_id, utc_offset, day_start, currency, language)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   utc_offset = excluded.utc_offset,
		   day_start  = excluded.day_start,
		   currency   = excluded.currency,
		   language   = excluded.language`,
		cfg.ChatID, cfg.UTCOffset, cfg.DayStart.String(), cfg.Currency, string(cfg.Language))
	if err != nil {
		return core.Unavailable("save chat config", err)
	}
	return nil
}
