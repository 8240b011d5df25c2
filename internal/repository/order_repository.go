package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/game-catalog/internal/model"
)

// OrderRepo persists purchase intents in the `orders` table.
//
// The table carries a stored generated column, pending_key, which equals
// "user_id:game_id" while the order is unprocessed and NULL afterwards.  A
// unique index on it lets MySQL reject a second unprocessed order for the
// same pair even when two requests pass the admission check concurrently.
type OrderRepo struct{ db *sql.DB }

// NewOrderRepo returns an OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = "id, user_id, game_id, is_processed, created_at"

// HasUnprocessed reports whether the user has an order for the game that
// is still waiting for a payment result.
func (r *OrderRepo) HasUnprocessed(ctx context.Context, userID, gameID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE user_id = ? AND game_id = ? AND is_processed = 0)",
		userID, gameID).Scan(&ok)
	return ok, err
}

// Save inserts a new unprocessed order.  ErrOrderPending is returned when
// another unprocessed order for the same pair won the race.
func (r *OrderRepo) Save(ctx context.Context, o model.Order) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO orders (id, user_id, game_id, is_processed, created_at) VALUES (?, ?, ?, 0, ?)",
		o.ID, o.UserID, o.GameID, o.CreatedAt)
	if err != nil && isDuplicateKey(err) {
		return ErrOrderPending
	}
	return err
}

// MarkProcessed flips is_processed to true.  changed is false when the
// order was already processed; ErrOrderNotFound is returned for unknown ids.
func (r *OrderRepo) MarkProcessed(ctx context.Context, orderID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET is_processed = 1 WHERE id = ? AND is_processed = 0", orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var processed bool
	err = r.db.QueryRowContext(ctx,
		"SELECT is_processed FROM orders WHERE id = ? LIMIT 1", orderID).Scan(&processed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrOrderNotFound
	}
	return false, err
}

// GetByID fetches a single order.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (model.Order, error) {
	var o model.Order
	err := r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = ? LIMIT 1", id).
		Scan(&o.ID, &o.UserID, &o.GameID, &o.IsProcessed, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrOrderNotFound
	}
	return o, err
}

// ListUnprocessedBefore returns unprocessed orders created before cutoff,
// oldest first.  Used to find orders whose placement event was never
// delivered.
func (r *OrderRepo) ListUnprocessedBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE is_processed = 0 AND created_at < ? ORDER BY created_at",
		cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.GameID, &o.IsProcessed, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
