package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func qty(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestSummarizeRoundScenario(t *testing.T) {
	cfg := ChatConfig{ChatID: 1, UTCOffset: 7, Language: LangEN}
	txs := []Transaction{
		{ID: 1, ChatID: 1, Amount: MustMoney("100.00"), Actor: "Alice", CreatedAt: mustTime(t, "2024-01-01T10:00:00Z")},
		{ID: 2, ChatID: 1, Amount: MustMoney("-50.00"), Label: "USD", Quantity: qty("1"), Actor: "Bob", CreatedAt: mustTime(t, "2024-01-02T20:00:00Z")},
	}

	w := CurrentWindow(cfg, mustTime(t, "2024-01-02T21:00:00Z"))
	if !w.Start.Equal(mustTime(t, "2024-01-02T17:00:00Z")) || !w.End.Equal(mustTime(t, "2024-01-03T17:00:00Z")) {
		t.Fatalf("unexpected window %s..%s", w.Start, w.End)
	}

	var round []Transaction
	for _, tx := range txs {
		if w.Contains(tx.CreatedAt) {
			round = append(round, tx)
		}
	}
	if len(round) != 1 || round[0].ID != 2 {
		t.Fatalf("expected only transaction 2 in round, got %+v", round)
	}

	s := Summarize(round)
	if s.Total.String() != "-50.00" {
		t.Fatalf("total = %s", s.Total)
	}
	usd, ok := s.ByCategory["USD"]
	if !ok {
		t.Fatalf("missing USD category: %+v", s.ByCategory)
	}
	if usd.Subtotal.String() != "-50.00" || !usd.Quantity.Equal(decimal.NewFromInt(1)) || usd.Count != 1 {
		t.Fatalf("unexpected USD totals %+v", usd)
	}
}

func TestSummarizeExactTotals(t *testing.T) {
	txs := []Transaction{
		{Amount: MustMoney("0.10"), Actor: "A"},
		{Amount: MustMoney("0.20"), Actor: "B"},
	}
	s := Summarize(txs)
	if s.Total.String() != "0.30" || s.Count != 2 {
		t.Fatalf("expected 0.30 over 2, got %s over %d", s.Total, s.Count)
	}

	var want Money
	amounts := []string{"19.99", "-0.01", "1000", "-333.33", "0.05", "12,345"}
	txs = txs[:0]
	for _, a := range amounts {
		m := MustMoney(a)
		want = want.Add(m)
		txs = append(txs, Transaction{Amount: m, Actor: "A"})
	}
	if got := Summarize(txs).Total; !got.Equal(want) || got.Cents() != 69905 {
		t.Fatalf("total %s (%d cents), want %s", got, got.Cents(), want)
	}
}

func TestSummarizeCategoriesAndRanking(t *testing.T) {
	txs := []Transaction{
		{Amount: MustMoney("10"), Label: "beer", Quantity: qty("2"), Actor: "Carol"},
		{Amount: MustMoney("5"), Actor: "Bob"},
		{Amount: MustMoney("15"), Label: "beer", Quantity: qty("3"), Actor: "Alice"},
		{Amount: MustMoney("-5"), Label: "fee", Actor: "Bob"},
		{Amount: MustMoney("25"), Label: "beer", Actor: "Bob"},
	}
	s := Summarize(txs)

	cats := s.Categories()
	if len(cats) != 3 || cats[0].Label != "beer" || cats[1].Label != Uncategorized || cats[2].Label != "fee" {
		t.Fatalf("unexpected category order %+v", cats)
	}
	if cats[0].Subtotal.String() != "50.00" || cats[0].Count != 3 || cats[0].Quantity.String() != "5" {
		t.Fatalf("unexpected beer totals %+v", cats[0])
	}

	ranking := s.Ranking()
	// Bob 25, Alice 15, Carol 10.
	want := []string{"Bob", "Alice", "Carol"}
	for i, name := range want {
		if ranking[i].Actor != name {
			t.Fatalf("ranking[%d] = %s, want %s (%+v)", i, ranking[i].Actor, name, ranking)
		}
	}

	tied := Summarize([]Transaction{
		{Amount: MustMoney("7"), Actor: "Zed"},
		{Amount: MustMoney("7"), Actor: "Amy"},
	}).Ranking()
	if tied[0].Actor != "Amy" || tied[1].Actor != "Zed" {
		t.Fatalf("ties must break by name, got %+v", tied)
	}
}

func TestDisplayKeepsTrueIndices(t *testing.T) {
	var txs []Transaction
	base := mustTime(t, "2024-01-01T00:00:00Z")
	for i := 0; i < 12; i++ {
		txs = append(txs, Transaction{ID: int64(i + 1), Amount: MustMoney("1"), Actor: "A", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	page := Display(txs, 6)
	if page.Elided != 6 || page.Total != 12 || len(page.Entries) != 6 {
		t.Fatalf("unexpected page %+v", page)
	}
	if first := page.Entries[0]; first.Index != 7 || first.Transaction.ID != 7 || first.Running.String() != "7.00" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if last := page.Entries[5]; last.Index != 12 || last.Running.String() != "12.00" {
		t.Fatalf("unexpected last entry %+v", last)
	}

	all := Display(txs, 0)
	if all.Elided != 0 || len(all.Entries) != 12 || all.Entries[0].Index != 1 {
		t.Fatalf("unexpected full page %+v", all)
	}
	if short := Display(txs[:3], 10); short.Elided != 0 || len(short.Entries) != 3 {
		t.Fatalf("unexpected short page %+v", short)
	}
	if empty := Display(nil, 10); empty.Total != 0 || len(empty.Entries) != 0 {
		t.Fatalf("unexpected empty page %+v", empty)
	}
}
