// Package memory keeps audit rows in process, for running the exporter
// without a spreadsheet.
package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/core"
	"tally/internal/sheets"
)

type Writer struct {
	mu   sync.Mutex
	rows [][]any
}

var _ sheets.EventWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

// AppendEvent stores the row and returns a synthetic row reference.
func (w *Writer) AppendEvent(_ context.Context, ev core.JournalEvent) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, sheets.Row(ev))
	return fmt.Sprintf("mem:%d", len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]any(nil), w.rows...)
}
