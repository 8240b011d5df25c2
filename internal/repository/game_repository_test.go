package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/game-catalog/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestGameRepo_List(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("SELECT id, title, description, price FROM games ORDER BY title, id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "price"}).
			AddRow("g1", "Cyber Adventure", "Futuristic RPG", "49.99").
			AddRow("g2", "Space Battles", "Multiplayer space shooter", "29.99"))

	games, err := NewGameRepo(db).List(context.Background())

	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "Cyber Adventure", games[0].Title)
	assert.Equal(t, "29.99", games[1].Price.StringFixed(2))
}

func TestGameRepo_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("SELECT id, title, description, price FROM games WHERE id = ? LIMIT 1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "price"}))

	_, err := NewGameRepo(db).Get(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestGameRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO games (id, title, description, price) VALUES (?, ?, ?, ?)")).
		WithArgs(sqlmock.AnyArg(), "Cyber Adventure", "Futuristic RPG", "49.99").
		WillReturnResult(sqlmock.NewResult(0, 1))

	g, err := NewGameRepo(db).Create(context.Background(), model.Game{
		Title:       "Cyber Adventure",
		Description: "Futuristic RPG",
		Price:       decimal.RequireFromString("49.99"),
	})

	require.NoError(t, err)
	assert.Len(t, g.ID, 36)
}

func TestGameRepo_UpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE games SET title = ?, description = ?, price = ? WHERE id = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT 1 FROM games WHERE id = ? LIMIT 1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	err := NewGameRepo(db).Update(context.Background(), model.Game{ID: "missing", Title: "t", Description: "d"})

	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestGameRepo_UpdateUnchangedRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE games SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT 1 FROM games WHERE id = ? LIMIT 1")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	err := NewGameRepo(db).Update(context.Background(), model.Game{ID: "g1", Title: "t", Description: "d"})

	assert.NoError(t, err)
}

func TestGameRepo_DeletePropagatesErrors(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("boom")
	mock.ExpectExec(q("DELETE FROM games WHERE id = ?")).WithArgs("g1").WillReturnError(boom)

	err := NewGameRepo(db).Delete(context.Background(), "g1")

	assert.ErrorIs(t, err, boom)
}
