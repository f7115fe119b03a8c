package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// JournalEventMessage is the wire form of core.JournalEvent.
type JournalEventMessage struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	ChatID        int64     `json:"chat_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Label         string    `json:"label,omitempty"`
	Quantity      string    `json:"quantity,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Deleted       int64     `json:"deleted,omitempty"`
	Scope         string    `json:"scope,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewJournalEventMessage converts a domain event for publishing.
func NewJournalEventMessage(ev core.JournalEvent) *JournalEventMessage {
	msg := &JournalEventMessage{
		ID:            ev.ID,
		Type:          string(ev.Type),
		ChatID:        ev.ChatID,
		TransactionID: ev.TransactionID,
		Label:         ev.Label,
		Quantity:      ev.Quantity,
		Actor:         ev.Actor,
		Deleted:       ev.Deleted,
		Scope:         ev.Scope,
		OccurredAt:    ev.OccurredAt.UTC(),
	}
	if !ev.Amount.IsZero() {
		msg.Amount = ev.Amount.String()
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *JournalEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// JournalEventMessageFromJSON decodes and checks a message body.
func JournalEventMessageFromJSON(data []byte) (*JournalEventMessage, error) {
	var msg JournalEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.ChatID == 0 {
		return nil, fmt.Errorf("journal event missing id or chat")
	}
	switch core.EventType(msg.Type) {
	case core.EventAppended, core.EventUndone, core.EventReset:
	default:
		return nil, fmt.Errorf("unknown journal event type %q", msg.Type)
	}
	return &msg, nil
}

// Event converts the message back to the domain event.
func (m *JournalEventMessage) Event() (core.JournalEvent, error) {
	ev := core.JournalEvent{
		ID:            m.ID,
		Type:          core.EventType(m.Type),
		ChatID:        m.ChatID,
		TransactionID: m.TransactionID,
		Label:         m.Label,
		Quantity:      m.Quantity,
		Actor:         m.Actor,
		Deleted:       m.Deleted,
		Scope:         m.Scope,
		OccurredAt:    m.OccurredAt,
	}
	if m.Amount != "" {
		d, err := decimal.NewFromString(m.Amount)
		if err != nil {
			return core.JournalEvent{}, fmt.Errorf("event %s amount %q: %w", m.ID, m.Amount, err)
		}
		ev.Amount = core.NewMoney(d)
	}
	return ev, nil
}
