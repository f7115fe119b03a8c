package sheets

import (
	"context"

	"tally/internal/core"
)

// Ports for outbound adapters.
type (
	// EventWriter appends one audit row per journal event.
	EventWriter interface {
		AppendEvent(ctx context.Context, ev core.JournalEvent) (rowRef string, err error)
	}
)

// Header is the audit sheet's first row.
var Header = []string{
	"Event ID", "Occurred At", "Type", "Chat", "Transaction",
	"Amount", "Label", "Quantity", "Actor", "Deleted", "Scope",
}

// Row renders ev in Header order.
func Row(ev core.JournalEvent) []any {
	amount := ""
	if !ev.Amount.IsZero() {
		amount = ev.Amount.String()
	}
	var txID any = ""
	if ev.TransactionID != 0 {
		txID = ev.TransactionID
	}
	return []any{
		ev.ID,
		ev.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		string(ev.Type),
		ev.ChatID,
		txID,
		amount,
		ev.Label,
		ev.Quantity,
		ev.Actor,
		ev.Deleted,
		ev.Scope,
	}
}
