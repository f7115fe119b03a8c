package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/lock"
	tlog "tally/internal/log"
	"tally/internal/ports"
)

// Settings owns every read and write of ChatConfig. The cache is only
// coherent while this instance is the sole writer of the store.
type Settings struct {
	store  ports.SettingsStore
	locker lock.Locker
	cache  cache.Cache[int64, core.ChatConfig]
	logger *slog.Logger

	// generation counts saved updates per chat; a Get whose store read
	// started before an update does not fill the cache.
	mu         sync.Mutex
	generation map[int64]uint64
}

// NewSettings builds the settings service. c may be nil to disable caching.
func NewSettings(store ports.SettingsStore, locker lock.Locker, c cache.Cache[int64, core.ChatConfig]) *Settings {
	return &Settings{
		store:      store,
		locker:     locker,
		cache:      c,
		logger:     slog.Default().With(tlog.FieldComponent, tlog.ComponentSettings),
		generation: make(map[int64]uint64),
	}
}

// Get returns the chat's config, creating the default row on first access.
func (s *Settings) Get(ctx context.Context, chatID int64) (core.ChatConfig, error) {
	if s.cache == nil {
		return s.load(ctx, chatID)
	}
	if cfg, ok := s.cache.Get(chatID); ok {
		return cfg, nil
	}

	s.mu.Lock()
	gen := s.generation[chatID]
	s.mu.Unlock()

	cfg, err := s.load(ctx, chatID)
	if err != nil {
		return core.ChatConfig{}, err
	}

	s.mu.Lock()
	if s.generation[chatID] == gen {
		s.cache.Set(chatID, cfg)
	}
	s.mu.Unlock()
	return cfg, nil
}

// Peek returns the chat's config without creating it. A chat that never
// used the bot reports the defaults.
func (s *Settings) Peek(ctx context.Context, chatID int64) (core.ChatConfig, error) {
	if s.cache != nil {
		if cfg, ok := s.cache.Get(chatID); ok {
			return cfg, nil
		}
	}
	cfg, err := s.store.GetChatConfig(ctx, chatID)
	if err != nil {
		return core.ChatConfig{}, fmt.Errorf("read chat config: %w", err)
	}
	if cfg == nil {
		return core.DefaultChatConfig(chatID), nil
	}
	return *cfg, nil
}

func (s *Settings) load(ctx context.Context, chatID int64) (core.ChatConfig, error) {
	cfg, err := s.store.GetOrCreateChatConfig(ctx, chatID)
	if err != nil {
		return core.ChatConfig{}, fmt.Errorf("load chat config: %w", err)
	}
	return cfg, nil
}

// Update applies mutate to the stored config and saves it if it still
// validates. Updates to one chat are serialized.
func (s *Settings) Update(ctx context.Context, chatID int64, mutate func(*core.ChatConfig) error) (core.ChatConfig, error) {
	unlock, err := s.locker.Lock(ctx, "config:"+strconv.FormatInt(chatID, 10))
	if err != nil {
		return core.ChatConfig{}, err
	}
	defer unlock()

	cfg, err := s.load(ctx, chatID)
	if err != nil {
		return core.ChatConfig{}, err
	}
	if err := mutate(&cfg); err != nil {
		return core.ChatConfig{}, err
	}
	cfg.ChatID = chatID
	if err := cfg.Validate(); err != nil {
		return core.ChatConfig{}, err
	}
	if err := s.store.SaveChatConfig(ctx, cfg); err != nil {
		if s.cache != nil {
			s.cache.Delete(chatID)
		}
		return core.ChatConfig{}, fmt.Errorf("save chat config: %w", err)
	}
	if s.cache != nil {
		s.mu.Lock()
		s.generation[chatID]++
		s.cache.Set(chatID, cfg)
		s.mu.Unlock()
	}

	s.logger.InfoContext(ctx, "Chat config updated",
		tlog.FieldChatID, chatID,
		"utc_offset", cfg.UTCOffset,
		"day_start", cfg.DayStart.String(),
		"currency", cfg.Currency,
		"language", string(cfg.Language))
	return cfg, nil
}

func (s *Settings) SetUTCOffset(ctx context.Context, chatID int64, offset int) (core.ChatConfig, error) {
	return s.Update(ctx, chatID, func(c *core.ChatConfig) error {
		c.UTCOffset = offset
		return nil
	})
}

func (s *Settings) SetDayStart(ctx context.Context, chatID int64, start core.TimeOfDay) (core.ChatConfig, error) {
	return s.Update(ctx, chatID, func(c *core.ChatConfig) error {
		c.DayStart = start
		return nil
	})
}

func (s *Settings) SetCurrency(ctx context.Context, chatID int64, currency string) (core.ChatConfig, error) {
	return s.Update(ctx, chatID, func(c *core.ChatConfig) error {
		c.Currency = currency
		return nil
	})
}

func (s *Settings) SetLanguage(ctx context.Context, chatID int64, lang core.Language) (core.ChatConfig, error) {
	return s.Update(ctx, chatID, func(c *core.ChatConfig) error {
		c.Language = lang
		return nil
	})
}
