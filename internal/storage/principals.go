package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tally/internal/core"
)

func (r *SQLiteRepository) GetAdmin(ctx context.Context, userID int64) (*core.Admin, error) {
	var expire int64
	err := r.db.QueryRowContext(ctx, `SELECT expire_at FROM admins WHERE user_id = ?`, userID).Scan(&expire)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Unavailable("get admin", err)
	}
	return &core.Admin{UserID: userID, ExpireAt: time.Unix(0, expire).UTC()}, nil
}

func (r *SQLiteRepository) UpsertAdmin(ctx context.Context, a core.Admin) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admins (user_id, expire_at) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET expire_at = excluded.expire_at`,
		a.UserID, a.ExpireAt.UnixNano())
	if err != nil {
		return core.Unavailable("upsert admin", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAdmins(ctx context.Context) ([]core.Admin, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, expire_at FROM admins ORDER BY user_id`)
	if err != nil {
		return nil, core.Unavailable("list admins", err)
	}
	defer rows.Close()

	var out []core.Admin
	for rows.Next() {
		var (
			a      core.Admin
			expire int64
		)
		if err := rows.Scan(&a.UserID, &expire); err != nil {
			return nil, core.Unavailable("scan admin", err)
		}
		a.ExpireAt = time.Unix(0, expire).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Unavailable("list admins", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetOperator(ctx context.Context, userID, chatID int64) (*core.Operator, error) {
	op := core.Operator{UserID: userID, ChatID: chatID}
	err := r.db.QueryRowContext(ctx,
		`SELECT display_name FROM operators WHERE user_id = ? AND chat_id = ?`,
		userID, chatID).Scan(&op.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Unavailable("get operator", err)
	}
	return &op, nil
}

func (r *SQLiteRepository) UpsertOperator(ctx context.Context, op core.Operator) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operators (user_id, chat_id, display_name) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, chat_id) DO UPDATE SET display_name = excluded.display_name`,
		op.UserID, op.ChatID, op.DisplayName)
	if err != nil {
		return core.Unavailable("upsert operator", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteOperator(ctx context.Context, userID, chatID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM operators WHERE user_id = ? AND chat_id = ?`, userID, chatID)
	if err != nil {
		return false, core.Unavailable("delete operator", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.Unavailable("delete operator", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) ListOperators(ctx context.Context, chatID int64) ([]core.Operator, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, display_name FROM operators WHERE chat_id = ? ORDER BY display_name, user_id`, chatID)
	if err != nil {
		return nil, core.Unavailable("list operators", err)
	}
	defer rows.Close()

	var out []core.Operator
	for rows.Next() {
		op := core.Operator{ChatID: chatID}
		if err := rows.Scan(&op.UserID, &op.DisplayName); err != nil {
			return nil, core.Unavailable("scan operator", err)
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Unavailable("list operators", err)
	}
	return out, nil
}
