package core

import (
	"fmt"
	"time"
)

// RoundLength is the length of every accounting round.
const RoundLength = 24 * time.Hour

// Window is a half-open [Start, End) interval in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// CurrentWindow returns the round that contains now for the chat's offset and
// daily start time. The start is the latest local daily-start boundary at or
// before local now.
func CurrentWindow(cfg ChatConfig, now time.Time) Window {
	offset := time.Duration(cfg.UTCOffset) * time.Hour
	local := now.UTC().Add(offset)

	y, m, d := local.Date()
	start := time.Date(y, m, d, cfg.DayStart.Hour, cfg.DayStart.Minute, 0, 0, time.UTC)
	if local.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	start = start.Add(-offset)
	return Window{Start: start, End: start.Add(RoundLength)}
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Zone returns the fixed zone for the chat, named like "UTC+7".
func Zone(cfg ChatConfig) *time.Location {
	name := fmt.Sprintf("UTC%+d", cfg.UTCOffset)
	if cfg.UTCOffset == 0 {
		name = "UTC"
	}
	return time.FixedZone(name, cfg.UTCOffset*3600)
}

// LocalTime converts t to the chat's wall clock.
func LocalTime(cfg ChatConfig, t time.Time) time.Time {
	return t.In(Zone(cfg))
}
