package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/game-catalog/internal/config"
	"github.com/iliyamo/game-catalog/internal/model"
	"github.com/iliyamo/game-catalog/internal/repository/memory"
)

func TestMigrateAppliesEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS games").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS entitlements").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	denied := errors.New("access denied")
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS games").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnError(denied)

	err = Migrate(context.Background(), db)

	assert.ErrorIs(t, err, denied)
	assert.ErrorContains(t, err, "migration 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedOnlyFillsEmptyCatalog(t *testing.T) {
	games := memory.NewGameStore()
	ctx := context.Background()

	n, err := Seed(ctx, games)
	require.NoError(t, err)
	assert.Equal(t, len(DemoGames), n)

	n, err = Seed(ctx, games)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := games.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Cyber Adventure", list[0].Title)
	assert.Equal(t, "49.99", list[0].Price.StringFixed(2))
}

func TestSeedLeavesExistingCatalog(t *testing.T) {
	games := memory.NewGameStore()
	ctx := context.Background()
	_, err := games.Create(ctx, model.Game{Title: "Myst"})
	require.NoError(t, err)

	n, err := Seed(ctx, games)

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDSN(t *testing.T) {
	t.Run("with password", func(t *testing.T) {
		got, err := mysql.ParseDSN(dsn(config.DBConfig{
			User: "catalog", Pass: "s3cr@t", Host: "db", Port: "3307", Name: "games",
		}))

		require.NoError(t, err)
		assert.Equal(t, "catalog", got.User)
		assert.Equal(t, "s3cr@t", got.Passwd)
		assert.Equal(t, "tcp", got.Net)
		assert.Equal(t, "db:3307", got.Addr)
		assert.Equal(t, "games", got.DBName)
		assert.True(t, got.ParseTime)
		assert.Equal(t, time.UTC, got.Loc)
		assert.Equal(t, "utf8mb4", got.Params["charset"])
	})

	t.Run("empty password", func(t *testing.T) {
		raw := dsn(config.DBConfig{User: "catalog", Host: "localhost", Port: "3306", Name: "games"})

		assert.Contains(t, raw, "catalog@tcp(localhost:3306)/games")
	})
}

func TestOpenFailsWhenServerUnreachable(t *testing.T) {
	start := time.Now()
	db, err := Open(context.Background(), config.DBConfig{
		User: "u", Host: "127.0.0.1", Port: "1", Name: "games",
		MaxOpenConns: 1, MaxIdleConns: 1, PingTimeout: time.Second,
	})

	assert.Nil(t, db)
	assert.ErrorContains(t, err, "ping mysql at 127.0.0.1:1")
	assert.Less(t, time.Since(start), 5*time.Second)
}
