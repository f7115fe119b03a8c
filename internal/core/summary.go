package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryTotal aggregates the transactions sharing one label.
type CategoryTotal struct {
	Label    string
	Subtotal Money
	Quantity decimal.Decimal // sum of the quantities that were given
	Count    int
}

// ActorTotal is one line of the per-person ranking.
type ActorTotal struct {
	Actor string
	Total Money
}

// Summary is the aggregate of a set of transactions.
type Summary struct {
	Total      Money
	Count      int
	ByCategory map[string]CategoryTotal
	ByActor    map[string]Money

	categoryOrder []string
}

// Summarize totals txs overall, by category and by actor. Sums are exact.
func Summarize(txs []Transaction) Summary {
	s := Summary{
		ByCategory: make(map[string]CategoryTotal),
		ByActor:    make(map[string]Money),
	}
	for _, tx := range txs {
		s.Total = s.Total.Add(tx.Amount)
		s.Count++

		key := tx.Category()
		ct, seen := s.ByCategory[key]
		if !seen {
			ct.Label = key
			s.categoryOrder = append(s.categoryOrder, key)
		}
		ct.Subtotal = ct.Subtotal.Add(tx.Amount)
		if tx.Quantity != nil {
			ct.Quantity = ct.Quantity.Add(*tx.Quantity)
		}
		ct.Count++
		s.ByCategory[key] = ct

		s.ByActor[tx.Actor] = s.ByActor[tx.Actor].Add(tx.Amount)
	}
	return s
}

// Categories returns the category totals in first-seen order.
func (s Summary) Categories() []CategoryTotal {
	out := make([]CategoryTotal, 0, len(s.categoryOrder))
	for _, key := range s.categoryOrder {
		out = append(out, s.ByCategory[key])
	}
	return out
}

// Ranking returns per-actor totals, highest first, ties broken by name.
func (s Summary) Ranking() []ActorTotal {
	out := make([]ActorTotal, 0, len(s.ByActor))
	for actor, total := range s.ByActor {
		out = append(out, ActorTotal{Actor: actor, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Actor < out[j].Actor
	})
	return out
}

// Entry is a transaction with its position in the full list and the running
// total up to and including it.
type Entry struct {
	Index       int
	Transaction Transaction
	Running     Money
}

// Page is the tail of a chronological list prepared for display.
type Page struct {
	Entries []Entry
	Elided  int // entries before the first shown one
	Total   int
}

// Display keeps the last limit transactions of an ascending list (all when
// limit <= 0). Indices continue the list's true 1-based positions.
func Display(txs []Transaction, limit int) Page {
	entries := make([]Entry, len(txs))
	var running Money
	for i, tx := range txs {
		running = running.Add(tx.Amount)
		entries[i] = Entry{Index: i + 1, Transaction: tx, Running: running}
	}
	start := 0
	if limit > 0 && len(entries) > limit {
		start = len(entries) - limit
	}
	return Page{Entries: entries[start:], Elided: start, Total: len(txs)}
}
