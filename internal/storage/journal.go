package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/core"

	"github.com/shopspring/decimal"
)

const txColumns = `id, chat_id, amount_cents, label, quantity, actor_name, reply_message_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		tx       core.Transaction
		cents    int64
		label    sql.NullString
		quantity sql.NullString
		reply    sql.NullInt64
		created  int64
	)
	if err := s.Scan(&tx.ID, &tx.ChatID, &cents, &label, &quantity, &tx.Actor, &reply, &created); err != nil {
		return core.Transaction{}, err
	}
	tx.Amount = core.MoneyFromCents(cents)
	tx.Label = label.String
	if quantity.Valid {
		q, err := decimal.NewFromString(quantity.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %d: stored quantity %q: %w", tx.ID, quantity.String, err)
		}
		tx.Quantity = &q
	}
	tx.ReplyMessageID = reply.Int64
	tx.CreatedAt = time.Unix(0, created).UTC()
	return tx, nil
}

// windowClause narrows a chat query to w, or to the whole history when w is nil.
func windowClause(chatID int64, w *core.Window) (string, []any) {
	if w == nil {
		return `chat_id = ?`, []any{chatID}
	}
	return `chat_id = ? AND created_at >= ? AND created_at < ?`,
		[]any{chatID, w.Start.UnixNano(), w.End.UnixNano()}
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.CreatedAt = r.now().UTC()

	var label, quantity sql.NullString
	if tx.Label != "" {
		label = sql.NullString{String: tx.Label, Valid: true}
	}
	if tx.Quantity != nil {
		quantity = sql.NullString{String: tx.Quantity.String(), Valid: true}
	}
	var reply sql.NullInt64
	if tx.ReplyMessageID != 0 {
		reply = sql.NullInt64{Int64: tx.ReplyMessageID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (chat_id, amount_cents, label, quantity, actor_name, reply_message_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ChatID, tx.Amount.Cents(), label, quantity, tx.Actor, reply, tx.CreatedAt.UnixNano())
	if err != nil {
		return core.Transaction{}, core.Unavailable("insert transaction", err)
	}
	if tx.ID, err = res.LastInsertId(); err != nil {
		return core.Transaction{}, core.Unavailable("insert transaction", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"chat_id", tx.ChatID,
		"amount_cents", tx.Amount.Cents())
	return tx, nil
}

func (r *SQLiteRepository) LatestTransaction(ctx context.Context, chatID int64, w *core.Window) (*core.Transaction, error) {
	where, args := windowClause(chatID, w)
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE `+where+` ORDER BY created_at DESC, id DESC LIMIT 1`,
		args...)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Unavailable("latest transaction", err)
	}
	return &tx, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, core.Unavailable("delete transaction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.Unavailable("delete transaction", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteTransactions(ctx context.Context, chatID int64, w *core.Window) (int64, error) {
	where, args := windowClause(chatID, w)
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE `+where, args...)
	if err != nil {
		return 0, core.Unavailable("delete transactions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.Unavailable("delete transactions", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, chatID int64, w *core.Window) ([]core.Transaction, error) {
	where, args := windowClause(chatID, w)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE `+where+` ORDER BY created_at ASC, id ASC`,
		args...)
	if err != nil {
		return nil, core.Unavailable("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, core.Unavailable("scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Unavailable("list transactions", err)
	}
	return out, nil
}
