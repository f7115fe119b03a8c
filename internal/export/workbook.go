// Package export renders journal data as spreadsheet workbooks.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"tally/internal/core"
)

const (
	TransactionsSheet = "Transactions"
	SummarySheet      = "Summary"

	// ContentType is the MIME type of the bytes Workbook returns.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	timeLayout = "2006-01-02 15:04:05"
)

// Workbook builds an xlsx file with one row per transaction and a summary
// sheet. txs must be in ascending journal order.
func Workbook(cfg core.ChatConfig, title string, txs []core.Transaction) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TransactionsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	if err := writeTransactions(f, cfg, txs, bold); err != nil {
		return nil, err
	}
	if err := writeSummary(f, cfg, title, core.Summarize(txs), bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns a download name for a workbook of chatID.
func Filename(chatID int64, scope string) string {
	return fmt.Sprintf("tally_%d_%s.xlsx", chatID, scope)
}

func writeTransactions(f *excelize.File, cfg core.ChatConfig, txs []core.Transaction, headerStyle int) error {
	header := []interface{}{
		"#",
		"Time (" + core.Zone(cfg).String() + ")",
		"Actor",
		"Amount",
		"Label",
		"Quantity",
		"Running total",
	}
	if err := setRow(f, TransactionsSheet, 1, header); err != nil {
		return err
	}
	if err := f.SetCellStyle(TransactionsSheet, "A1", "G1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for _, e := range core.Display(txs, 0).Entries {
		tx := e.Transaction
		qty := ""
		if tx.Quantity != nil {
			qty = tx.Quantity.String()
		}
		row := []interface{}{
			e.Index,
			core.LocalTime(cfg, tx.CreatedAt).Format(timeLayout),
			tx.Actor,
			tx.Amount.Decimal().InexactFloat64(),
			tx.Label,
			qty,
			e.Running.Decimal().InexactFloat64(),
		}
		if err := setRow(f, TransactionsSheet, e.Index+1, row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(TransactionsSheet, "B", "C", 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, cfg core.ChatConfig, title string, s core.Summary, headerStyle int) error {
	rows := [][]interface{}{
		{title},
		{"Currency", cfg.Currency},
		{"Transactions", s.Count},
		{"Total", s.Total.Decimal().InexactFloat64()},
		{},
		{"Category", "Subtotal", "Quantity", "Count"},
	}
	styled := []int{1, 6}

	for _, c := range s.Categories() {
		qty := ""
		if !c.Quantity.IsZero() {
			qty = c.Quantity.String()
		}
		rows = append(rows, []interface{}{c.Label, c.Subtotal.Decimal().InexactFloat64(), qty, c.Count})
	}

	rows = append(rows, []interface{}{}, []interface{}{"Person", "Total"})
	styled = append(styled, len(rows))
	for _, a := range s.Ranking() {
		rows = append(rows, []interface{}{a.Actor, a.Total.Decimal().InexactFloat64()})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	for _, r := range styled {
		cell := fmt.Sprintf("A%d", r)
		end := fmt.Sprintf("D%d", r)
		if err := f.SetCellStyle(SummarySheet, cell, end, headerStyle); err != nil {
			return fmt.Errorf("style summary: %w", err)
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
