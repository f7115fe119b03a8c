package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/lock"
	tlog "tally/internal/log"
	"tally/internal/ports"
)

// EventPublisher forwards committed journal mutations downstream.
type EventPublisher interface {
	PublishJournalEvent(ctx context.Context, ev core.JournalEvent) error
}

// Journal is the transaction journal. It does not authorize: callers must
// have resolved at least operator before Append or Undo and admin before
// DeleteAll. Mutations of one chat are serialized through the locker.
type Journal struct {
	store     ports.JournalStore
	locker    lock.Locker
	publisher EventPublisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewJournal builds the journal. publisher may be nil.
func NewJournal(store ports.JournalStore, locker lock.Locker, publisher EventPublisher) *Journal {
	return &Journal{
		store:     store,
		locker:    locker,
		publisher: publisher,
		now:       time.Now,
		logger:    slog.Default().With(tlog.FieldComponent, tlog.ComponentJournal),
	}
}

func chatKey(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}

// Append validates tx and stores it. The store assigns ID and CreatedAt.
func (j *Journal) Append(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	unlock, err := j.locker.Lock(ctx, chatKey(tx.ChatID))
	if err != nil {
		return core.Transaction{}, err
	}
	stored, err := j.store.InsertTransaction(ctx, tx)
	unlock()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}

	j.logger.InfoContext(ctx, "Transaction appended",
		tlog.NewFields().
			WithChat(stored.ChatID, 0).
			WithTransaction(stored.ID, stored.Amount.Cents()).
			WithOperation(tlog.OpAppend).
			ToSlice()...)

	ev := j.event(core.EventAppended, stored.ChatID)
	ev.TransactionID = stored.ID
	ev.Amount = stored.Amount
	ev.Label = stored.Label
	if stored.Quantity != nil {
		ev.Quantity = stored.Quantity.String()
	}
	ev.Actor = stored.Actor
	j.publish(ctx, ev)

	return stored, nil
}

// LatestInWindow returns the most recent transaction in w (all history when
// w is nil), or core.ErrNotFound.
func (j *Journal) LatestInWindow(ctx context.Context, chatID int64, w *core.Window) (core.Transaction, error) {
	tx, err := j.store.LatestTransaction(ctx, chatID, w)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("latest transaction: %w", err)
	}
	if tx == nil {
		return core.Transaction{}, fmt.Errorf("%w: no transaction in window", core.ErrNotFound)
	}
	return *tx, nil
}

// DeleteByID removes one transaction, or returns core.ErrNotFound.
func (j *Journal) DeleteByID(ctx context.Context, id int64) error {
	ok, err := j.store.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: transaction %d", core.ErrNotFound, id)
	}
	return nil
}

// Undo deletes the latest transaction in w and returns it. Lookup and delete
// happen under the chat lock so no append can slip in between.
func (j *Journal) Undo(ctx context.Context, chatID int64, w core.Window) (core.Transaction, error) {
	unlock, err := j.locker.Lock(ctx, chatKey(chatID))
	if err != nil {
		return core.Transaction{}, err
	}
	tx, err := j.LatestInWindow(ctx, chatID, &w)
	if err == nil {
		err = j.DeleteByID(ctx, tx.ID)
	}
	unlock()
	if err != nil {
		return core.Transaction{}, err
	}

	j.logger.InfoContext(ctx, "Transaction undone",
		tlog.NewFields().
			WithChat(chatID, 0).
			WithTransaction(tx.ID, tx.Amount.Cents()).
			WithOperation(tlog.OpUndo).
			ToSlice()...)

	ev := j.event(core.EventUndone, chatID)
	ev.TransactionID = tx.ID
	ev.Amount = tx.Amount
	ev.Label = tx.Label
	if tx.Quantity != nil {
		ev.Quantity = tx.Quantity.String()
	}
	ev.Actor = tx.Actor
	ev.Deleted = 1
	j.publish(ctx, ev)

	return tx, nil
}

// DeleteAll removes every transaction of the chat in w, or the whole history
// when w is nil, and returns how many rows went.
func (j *Journal) DeleteAll(ctx context.Context, chatID int64, w *core.Window) (int64, error) {
	unlock, err := j.locker.Lock(ctx, chatKey(chatID))
	if err != nil {
		return 0, err
	}
	n, err := j.store.DeleteTransactions(ctx, chatID, w)
	unlock()
	if err != nil {
		return 0, fmt.Errorf("reset journal: %w", err)
	}

	scope := core.ScopeAll
	if w != nil {
		scope = core.ScopeRound
	}
	j.logger.InfoContext(ctx, "Journal reset",
		tlog.FieldChatID, chatID,
		tlog.FieldScope, scope,
		tlog.FieldDeleted, n,
		tlog.FieldOperation, tlog.OpReset)

	ev := j.event(core.EventReset, chatID)
	ev.Deleted = n
	ev.Scope = scope
	j.publish(ctx, ev)

	return n, nil
}

// List returns the chat's transactions in w (all when nil), oldest first.
func (j *Journal) List(ctx context.Context, chatID int64, w *core.Window) ([]core.Transaction, error) {
	txs, err := j.store.ListTransactions(ctx, chatID, w)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (j *Journal) event(typ core.EventType, chatID int64) core.JournalEvent {
	return core.JournalEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		ChatID:     chatID,
		OccurredAt: j.now().UTC(),
	}
}

// publish is best effort: the mutation is already committed.
func (j *Journal) publish(ctx context.Context, ev core.JournalEvent) {
	if j.publisher == nil {
		return
	}
	if err := j.publisher.PublishJournalEvent(ctx, ev); err != nil {
		j.logger.ErrorContext(ctx, "Failed to publish journal event",
			tlog.FieldChatID, ev.ChatID,
			tlog.FieldEventType, string(ev.Type),
			tlog.FieldError, err)
	}
}
