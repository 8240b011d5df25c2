package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// EntitlementRepo persists library entries in the `entitlements` table.
// The unique key on (user_id, game_id) is what makes Grant idempotent.
type EntitlementRepo struct{ db *sql.DB }

// NewEntitlementRepo returns an EntitlementRepo bound to the given database.
func NewEntitlementRepo(db *sql.DB) *EntitlementRepo { return &EntitlementRepo{db: db} }

// Exists reports whether the user already owns the game.
func (r *EntitlementRepo) Exists(ctx context.Context, userID, gameID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM entitlements WHERE user_id = ? AND game_id = ?)",
		userID, gameID).Scan(&ok)
	return ok, err
}

// Grant adds the game to the user's library.  When the pair already exists
// the insert collapses into a no-op update, so concurrent or repeated grants
// leave exactly one row.  created reports whether this call inserted it.
func (r *EntitlementRepo) Grant(ctx context.Context, userID, gameID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO entitlements (id, user_id, game_id, created_at) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE id = id`,
		uuid.NewString(), userID, gameID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListForUser returns the ids of every game the user owns, oldest first.
func (r *EntitlementRepo) ListForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT game_id FROM entitlements WHERE user_id = ? ORDER BY created_at, game_id",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
