package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/game-catalog/internal/model"
)

// GameRepo persists catalog entries in the `games` table.
type GameRepo struct{ db *sql.DB }

// NewGameRepo returns a GameRepo bound to the given database.
func NewGameRepo(db *sql.DB) *GameRepo { return &GameRepo{db: db} }

// List returns every game ordered by title.
func (r *GameRepo) List(ctx context.Context) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, title, description, price FROM games ORDER BY title, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []model.Game{}
	for rows.Next() {
		var g model.Game
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &g.Price); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// Get fetches a game by id.  ErrGameNotFound is returned when no row matches.
func (r *GameRepo) Get(ctx context.Context, id string) (model.Game, error) {
	var g model.Game
	err := r.db.QueryRowContext(ctx,
		"SELECT id, title, description, price FROM games WHERE id = ? LIMIT 1",
		id).Scan(&g.ID, &g.Title, &g.Description, &g.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Game{}, ErrGameNotFound
	}
	return g, err
}

// Create inserts a game under a freshly generated id and returns the stored row.
func (r *GameRepo) Create(ctx context.Context, g model.Game) (model.Game, error) {
	g.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO games (id, title, description, price) VALUES (?, ?, ?, ?)",
		g.ID, g.Title, g.Description, g.Price)
	if err != nil {
		return model.Game{}, err
	}
	return g, nil
}

// Update overwrites title, description and price of an existing game.  It
// never inserts: ErrGameNotFound is returned when the id is absent.
func (r *GameRepo) Update(ctx context.Context, g model.Game) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE games SET title = ?, description = ?, price = ? WHERE id = ?",
		g.Title, g.Description, g.Price, g.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// MySQL reports 0 affected rows when the values did not change, so an
	// existence check tells "unchanged" apart from "missing".
	var one int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM games WHERE id = ? LIMIT 1", g.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrGameNotFound
	}
	return err
}

// Delete removes a game.  Deleting an unknown id is not an error.
func (r *GameRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM games WHERE id = ?", id)
	return err
}
