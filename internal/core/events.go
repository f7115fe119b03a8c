package core

import "time"

// Journal event types.
const (
	EventAppended EventType = "appended"
	EventUndone   EventType = "undone"
	EventReset    EventType = "reset"
)

// Reset scopes.
const (
	ScopeRound = "round"
	ScopeAll   = "all"
)

type EventType string

// JournalEvent records one committed journal mutation for downstream consumers.
type JournalEvent struct {
	ID            string
	Type          EventType
	ChatID        int64
	TransactionID int64
	Amount        Money
	Label         string
	Quantity      string
	Actor         string
	Deleted       int64
	Scope         string
	OccurredAt    time.Time
}
