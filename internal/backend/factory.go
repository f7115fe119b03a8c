package backend

import (
	"context"
	"fmt"
	"log/slog"

	tlog "tally/internal/log"
	"tally/internal/storage"
	"tally/internal/storage/bolt"
	"tally/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(tlog.FieldComponent, tlog.ComponentBackend),
	}
}

// CreateBackend opens the store selected by config.Type.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var result *BackendResult
	var err error
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case BoltBackend:
		result, err = f.createBoltBackend(config)
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := result.Store.Ping(ctx); err != nil {
		_ = result.Cleanup()
		return nil, fmt.Errorf("backend %s not reachable: %w", config.Type, err)
	}
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("SQLite backend initialized", "path", config.SQLiteDBPath)

	return &BackendResult{
		Store: repo,
		Cleanup: func() error {
			f.logger.Info("Closing SQLite backend")
			return repo.Close()
		},
	}, nil
}

func (f *DefaultFactory) createBoltBackend(config Config) (*BackendResult, error) {
	store, err := bolt.Open(config.BoltDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	f.logger.Info("Bolt backend initialized", "path", config.BoltDBPath)

	return &BackendResult{
		Store: store,
		Cleanup: func() error {
			f.logger.Info("Closing bolt backend")
			return store.Close()
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	f.logger.Warn("Memory backend selected, data is lost on restart")
	store := memory.New()
	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}
}
