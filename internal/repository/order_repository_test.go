package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/game-catalog/internal/model"
)

func TestOrderRepo_HasUnprocessed(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM orders WHERE user_id = ? AND game_id = ? AND is_processed = 0)")).
		WithArgs("u1", "g1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := NewOrderRepo(db).HasUnprocessed(context.Background(), "u1", "g1")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderRepo_SaveDuplicatePending(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'u1:g1' for key 'ux_orders_pending'"}
	mock.ExpectExec(q("INSERT INTO orders (id, user_id, game_id, is_processed, created_at) VALUES (?, ?, ?, 0, ?)")).
		WithArgs("o1", "u1", "g1", now).
		WillReturnError(fmt.Errorf("exec: %w", dup))

	err := NewOrderRepo(db).Save(context.Background(), model.Order{ID: "o1", UserID: "u1", GameID: "g1", CreatedAt: now})

	assert.ErrorIs(t, err, ErrOrderPending)
}

func TestOrderRepo_SaveOtherErrorPassesThrough(t *testing.T) {
	db, mock := newMock(t)
	gone := &mysql.MySQLError{Number: 1146, Message: "Table 'orders' doesn't exist"}
	mock.ExpectExec(q("INSERT INTO orders")).WillReturnError(gone)

	err := NewOrderRepo(db).Save(context.Background(), model.Order{ID: "o1", UserID: "u1", GameID: "g1"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOrderPending)
}

func TestOrderRepo_MarkProcessed(t *testing.T) {
	const update = "UPDATE orders SET is_processed = 1 WHERE id = ? AND is_processed = 0"
	const processedQ = "SELECT is_processed FROM orders WHERE id = ? LIMIT 1"

	t.Run("first time", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(q(update)).WithArgs("o1").WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := NewOrderRepo(db).MarkProcessed(context.Background(), "o1")

		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("redelivery", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(q(update)).WithArgs("o1").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q(processedQ)).WithArgs("o1").
			WillReturnRows(sqlmock.NewRows([]string{"is_processed"}).AddRow(true))

		changed, err := NewOrderRepo(db).MarkProcessed(context.Background(), "o1")

		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("unknown", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(q(update)).WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q(processedQ)).WithArgs("nope").
			WillReturnRows(sqlmock.NewRows([]string{"is_processed"}))

		_, err := NewOrderRepo(db).MarkProcessed(context.Background(), "nope")

		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestOrderRepo_ListUnprocessedBefore(t *testing.T) {
	db, mock := newMock(t)
	cutoff := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	created := cutoff.Add(-time.Hour)
	mock.ExpectQuery(q("SELECT id, user_id, game_id, is_processed, created_at FROM orders WHERE is_processed = 0 AND created_at < ? ORDER BY created_at")).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "game_id", "is_processed", "created_at"}).
			AddRow("o1", "u1", "g1", false, created))

	orders, err := NewOrderRepo(db).ListUnprocessedBefore(context.Background(), cutoff)

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, created, orders[0].CreatedAt)
}

func TestOrderRepo_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM orders WHERE id = ? LIMIT 1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "game_id", "is_processed", "created_at"}))

	_, err := NewOrderRepo(db).GetByID(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrOrderNotFound)
}
