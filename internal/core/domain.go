package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Supported chat languages.
const (
	LangEN Language = "en"
	LangTH Language = "th"
)

// Uncategorized is the category key used for transactions without a label.
const Uncategorized = "-"

type (
	Language string

	// TimeOfDay is a local wall-clock time used as the daily round start.
	TimeOfDay struct {
		Hour   int `validate:"min=0,max=23"`
		Minute int `validate:"min=0,max=59"`
	}

	// ChatConfig holds per-chat settings. One row per chat, created on first use.
	ChatConfig struct {
		ChatID    int64    `validate:"required"`
		Currency  string   `validate:"max=16"`
		UTCOffset int      `validate:"min=-12,max=14"`
		DayStart  TimeOfDay
		Language  Language `validate:"oneof=en th"`
	}

	// Admin is a global, time-limited elevated grant.
	Admin struct {
		UserID   int64
		ExpireAt time.Time
	}

	// Operator may record transactions in one chat.
	Operator struct {
		UserID      int64
		ChatID      int64
		DisplayName string
	}

	// Transaction is one journal row. ID and CreatedAt are assigned by the store.
	Transaction struct {
		ID             int64
		ChatID         int64
		Amount         Money
		Label          string           // empty when absent
		Quantity       *decimal.Decimal // nil when absent
		Actor          string
		ReplyMessageID int64 // message the write replied to, 0 if none
		CreatedAt      time.Time
	}
)

var validate = validator.New()

// DefaultChatConfig returns the settings a chat starts with.
func DefaultChatConfig(chatID int64) ChatConfig {
	return ChatConfig{
		ChatID:    chatID,
		UTCOffset: 0,
		DayStart:  TimeOfDay{},
		Language:  LangEN,
	}
}

func (c ChatConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: chat config: %v", ErrValidation, err)
	}
	return nil
}

// Category returns the aggregation key for t.
func (t Transaction) Category() string {
	if strings.TrimSpace(t.Label) == "" {
		return Uncategorized
	}
	return t.Label
}

func (t Transaction) Validate() error {
	if t.Amount.IsZero() {
		return fmt.Errorf("%w: amount must not be zero", ErrInvalidAmount)
	}
	if !t.Amount.Decimal().Equal(t.Amount.Decimal().Round(moneyPlaces)) {
		return fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, moneyPlaces)
	}
	if t.Quantity != nil && !t.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if t.Quantity != nil && strings.TrimSpace(t.Label) == "" {
		return fmt.Errorf("%w: quantity requires a label", ErrInvalidQuantity)
	}
	if strings.TrimSpace(t.Label) == Uncategorized {
		return ErrReservedLabel
	}
	if len(t.Label) > 64 {
		return fmt.Errorf("%w: label too long (max 64 characters)", ErrValidation)
	}
	if strings.TrimSpace(t.Actor) == "" {
		return ErrEmptyActor
	}
	return nil
}

// Active reports whether the grant is still valid at now.
func (a Admin) Active(now time.Time) bool {
	return a.ExpireAt.After(now)
}

// ParseTimeOfDay parses "HH:MM" in 24h notation.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	t := TimeOfDay{Hour: h, Minute: m}
	if err := validate.Struct(t); err != nil {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	return t, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseUTCOffset parses "+7", "-3" or "0" and checks the -12..+14 range.
func ParseUTCOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "UTC"), "utc")
	n, err := strconv.Atoi(strings.TrimPrefix(s, "+"))
	if err != nil || n < -12 || n > 14 {
		return 0, ErrInvalidOffset
	}
	return n, nil
}

// ParseLanguage maps user input to a supported language.
func ParseLanguage(s string) (Language, error) {
	switch l := Language(strings.ToLower(strings.TrimSpace(s))); l {
	case LangEN, LangTH:
		return l, nil
	default:
		return "", ErrInvalidLanguage
	}
}
