// Package ports declares the store interfaces the services depend on.
//
// Implementations must wrap every driver failure with core.Unavailable and
// must report a missing row as a nil result, never as an error.
package ports

import (
	"context"

	"tally/internal/core"
)

type (
	// SettingsStore persists one ChatConfig per chat.
	SettingsStore interface {
		// GetOrCreateChatConfig returns the chat's config, inserting the
		// defaults first if the chat has none. Safe to call concurrently.
		GetOrCreateChatConfig(ctx context.Context, chatID int64) (core.ChatConfig, error)
		// GetChatConfig never inserts; nil means the chat has no row yet.
		GetChatConfig(ctx context.Context, chatID int64) (*core.ChatConfig, error)
		SaveChatConfig(ctx context.Context, cfg core.ChatConfig) error
	}

	// PrincipalStore holds global admin grants and per-chat operators.
	PrincipalStore interface {
		GetAdmin(ctx context.Context, userID int64) (*core.Admin, error)
		UpsertAdmin(ctx context.Context, a core.Admin) error
		ListAdmins(ctx context.Context) ([]core.Admin, error)

		GetOperator(ctx context.Context, userID, chatID int64) (*core.Operator, error)
		UpsertOperator(ctx context.Context, op core.Operator) error
		DeleteOperator(ctx context.Context, userID, chatID int64) (bool, error)
		ListOperators(ctx context.Context, chatID int64) ([]core.Operator, error)
	}

	// JournalStore is the append-only transaction table. A nil window means
	// the chat's entire history.
	JournalStore interface {
		// InsertTransaction assigns ID and CreatedAt and returns the stored row.
		InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// LatestTransaction orders by CreatedAt then ID, both descending.
		LatestTransaction(ctx context.Context, chatID int64, w *core.Window) (*core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) (bool, error)
		DeleteTransactions(ctx context.Context, chatID int64, w *core.Window) (int64, error)
		// ListTransactions orders by CreatedAt then ID, both ascending.
		ListTransactions(ctx context.Context, chatID int64, w *core.Window) ([]core.Transaction, error)
	}

	// Store is everything a backend provides.
	Store interface {
		SettingsStore
		PrincipalStore
		JournalStore
		Ping(ctx context.Context) error
		Close() error
	}
)
