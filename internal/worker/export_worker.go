package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	tlog "tally/internal/log"
	"tally/internal/sheets"
)

const (
	seenCacheSize = 4096
	seenCacheTTL  = 24 * time.Hour
)

// ExportWorker copies journal events into the audit sheet. Redelivered
// events that were already written are skipped.
type ExportWorker struct {
	writer sheets.EventWriter
	seen   cache.Cache[string, string]
	logger *slog.Logger
}

func NewExportWorker(writer sheets.EventWriter) *ExportWorker {
	return &ExportWorker{
		writer: writer,
		seen:   cache.NewLRU[string, string](seenCacheSize, seenCacheTTL),
		logger: slog.Default().With(tlog.FieldComponent, tlog.ComponentWorker),
	}
}

// Seen exposes the dedupe cache so it can be registered for cleanup.
func (w *ExportWorker) Seen() cache.Cleaner {
	if c, ok := w.seen.(cache.Cleaner); ok {
		return c
	}
	return nil
}

// HandleEvent processes a single journal event from AMQP.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev core.JournalEvent) error {
	if ref, ok := w.seen.Get(ev.ID); ok {
		w.logger.InfoContext(ctx, "Skipping already exported event", "id", ev.ID, "row", ref)
		return nil
	}

	start := time.Now()
	ref, err := w.writer.AppendEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("export event %s: %w", ev.ID, err)
	}
	w.seen.Set(ev.ID, ref)

	w.logger.InfoContext(ctx, "Exported journal event",
		tlog.NewFields().
			WithChat(ev.ChatID, 0).
			WithOperation(tlog.OpExport).
			WithDuration(time.Since(start)).
			ToSlice()...)
	return nil
}
