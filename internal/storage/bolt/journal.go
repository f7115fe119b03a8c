package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/shopspring/decimal"

	"tally/internal/core"
)

type txRecord struct {
	ID             int64  `json:"id"`
	ChatID         int64  `json:"chat_id"`
	AmountCents    int64  `json:"amount_cents"`
	Label          string `json:"label,omitempty"`
	Quantity       string `json:"quantity,omitempty"`
	Actor          string `json:"actor"`
	ReplyMessageID int64  `json:"reply_message_id,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}

func toRecord(tx core.Transaction) txRecord {
	rec := txRecord{
		ID:             tx.ID,
		ChatID:         tx.ChatID,
		AmountCents:    tx.Amount.Cents(),
		Label:          tx.Label,
		Actor:          tx.Actor,
		ReplyMessageID: tx.ReplyMessageID,
		CreatedAt:      tx.CreatedAt.UnixNano(),
	}
	if tx.Quantity != nil {
		rec.Quantity = tx.Quantity.String()
	}
	return rec
}

func (r txRecord) transaction() (core.Transaction, error) {
	tx := core.Transaction{
		ID:             r.ID,
		ChatID:         r.ChatID,
		Amount:         core.MoneyFromCents(r.AmountCents),
		Label:          r.Label,
		Actor:          r.Actor,
		ReplyMessageID: r.ReplyMessageID,
		CreatedAt:      time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.Quantity != "" {
		q, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %d: stored quantity %q: %w", r.ID, r.Quantity, err)
		}
		tx.Quantity = &q
	}
	return tx, nil
}

// bounds returns the key range [from, to) covering chatID within w.
func bounds(chatID int64, w *core.Window) (from, to []byte) {
	if w == nil {
		return key(chatID), key(chatID + 1)
	}
	return key(chatID, w.Start.UnixNano()), key(chatID, w.End.UnixNano())
}

// scan visits the chat's keys in [from, to) in ascending order.
func scan(c *bolt.Cursor, from, to []byte, fn func(k, v []byte) error) error {
	for k, v := c.Seek(from); k != nil && bytes.Compare(k, to) < 0; k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.CreatedAt = s.now().UTC()
	err := s.db.Update(func(btx *bolt.Tx) error {
		b := btx.Bucket(bucketTxs)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		tx.ID = int64(seq)
		data, err := json.Marshal(toRecord(tx))
		if err != nil {
			return err
		}
		k := key(tx.ChatID, tx.CreatedAt.UnixNano(), tx.ID)
		if err := b.Put(k, data); err != nil {
			return err
		}
		return btx.Bucket(bucketTxIndex).Put(key(tx.ID), k)
	})
	if err != nil {
		return core.Transaction{}, core.Unavailable("insert transaction", err)
	}
	return tx, nil
}

func (s *Store) LatestTransaction(_ context.Context, chatID int64, w *core.Window) (*core.Transaction, error) {
	var latest *core.Transaction
	err := s.db.View(func(btx *bolt.Tx) error {
		from, to := bounds(chatID, w)
		c := btx.Bucket(bucketTxs).Cursor()

		k, v := c.Seek(to)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		if k == nil || bytes.Compare(k, from) < 0 {
			return nil
		}
		var rec txRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		tx, err := rec.transaction()
		if err != nil {
			return err
		}
		latest = &tx
		return nil
	})
	if err != nil {
		return nil, core.Unavailable("latest transaction", err)
	}
	return latest, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) (bool, error) {
	var existed bool
	err := s.db.Update(func(btx *bolt.Tx) error {
		idx := btx.Bucket(bucketTxIndex)
		k := idx.Get(key(id))
		if k == nil {
			return nil
		}
		existed = true
		if err := btx.Bucket(bucketTxs).Delete(k); err != nil {
			return err
		}
		return idx.Delete(key(id))
	})
	if err != nil {
		return false, core.Unavailable("delete transaction", err)
	}
	return existed, nil
}

func (s *Store) DeleteTransactions(_ context.Context, chatID int64, w *core.Window) (int64, error) {
	var n int64
	err := s.db.Update(func(btx *bolt.Tx) error {
		b := btx.Bucket(bucketTxs)
		idx := btx.Bucket(bucketTxIndex)
		from, to := bounds(chatID, w)

		var doomed [][]byte
		err := scan(b.Cursor(), from, to, func(k, _ []byte) error {
			doomed = append(doomed, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
			if err := idx.Delete(k[16:24]); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, core.Unavailable("delete transactions", err)
	}
	return n, nil
}

func (s *Store) ListTransactions(_ context.Context, chatID int64, w *core.Window) ([]core.Transaction, error) {
	var out []core.Transaction
	err := s.db.View(func(btx *bolt.Tx) error {
		from, to := bounds(chatID, w)
		return scan(btx.Bucket(bucketTxs).Cursor(), from, to, func(_, v []byte) error {
			var rec txRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			tx, err := rec.transaction()
			if err != nil {
				return err
			}
			out = append(out, tx)
			return nil
		})
	})
	if err != nil {
		return nil, core.Unavailable("list transactions", err)
	}
	return out, nil
}
