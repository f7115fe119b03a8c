package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"tally/internal/core"
)

func TestWorkbook(t *testing.T) {
	cfg := core.ChatConfig{ChatID: 7, UTCOffset: 7, Currency: "THB", Language: core.LangEN}
	base := time.Date(2024, 1, 2, 17, 30, 0, 0, time.UTC)
	one := decimal.NewFromInt(1)
	txs := []core.Transaction{
		{ID: 1, ChatID: 7, Amount: core.MustMoney("100"), Actor: "Alice", CreatedAt: base},
		{ID: 2, ChatID: 7, Amount: core.MustMoney("-50.5"), Label: "USD", Quantity: &one, Actor: "Bob", CreatedAt: base.Add(time.Hour)},
	}

	data, err := Workbook(cfg, "Round 2024-01-03", txs)
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(TransactionsSheet)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "Time (UTC+7)" {
		t.Fatalf("unexpected time header %q", rows[0][1])
	}
	want := []string{"2", "2024-01-03 01:30:00", "Bob", "-50.5", "USD", "1", "49.5"}
	for i, w := range want {
		if rows[2][i] != w {
			t.Fatalf("column %d = %q, want %q (row %v)", i, rows[2][i], w, rows[2])
		}
	}

	if v, _ := f.GetCellValue(SummarySheet, "A1"); v != "Round 2024-01-03" {
		t.Fatalf("unexpected title %q", v)
	}
	if v, _ := f.GetCellValue(SummarySheet, "B4"); v != "49.5" {
		t.Fatalf("unexpected total %q", v)
	}
	// Categories start at row 7 in first-seen order.
	if v, _ := f.GetCellValue(SummarySheet, "A7"); v != core.Uncategorized {
		t.Fatalf("unexpected first category %q", v)
	}
	if v, _ := f.GetCellValue(SummarySheet, "A8"); v != "USD" {
		t.Fatalf("unexpected second category %q", v)
	}
	if v, _ := f.GetCellValue(SummarySheet, "A11"); v != "Alice" {
		t.Fatalf("expected Alice to lead the ranking, got %q", v)
	}
}

func TestWorkbookEmpty(t *testing.T) {
	data, err := Workbook(core.DefaultChatConfig(1), "empty", nil)
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows(TransactionsSheet)
	if len(rows) != 1 {
		t.Fatalf("expected only the header row, got %d", len(rows))
	}
	if v, _ := f.GetCellValue(SummarySheet, "B3"); v != "0" {
		t.Fatalf("unexpected count %q", v)
	}
}
