package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on every start; each statement is idempotent.
//
// orders.pending_key is "user_id:game_id" while the order is unprocessed
// and NULL once processed.  Its unique index allows any number of
// processed orders per pair but only one pending one, which closes the
// window between the admission check and the insert.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id          CHAR(36)      NOT NULL,
		title       VARCHAR(200)  NOT NULL,
		description VARCHAR(2000) NOT NULL,
		price       DECIMAL(18,2) NOT NULL,
		PRIMARY KEY (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS orders (
		id           CHAR(36)    NOT NULL,
		user_id      VARCHAR(64) NOT NULL,
		game_id      CHAR(36)    NOT NULL,
		is_processed TINYINT(1)  NOT NULL DEFAULT 0,
		created_at   DATETIME(6) NOT NULL,
		pending_key  VARCHAR(101) AS (IF(is_processed = 0, CONCAT(user_id, ':', game_id), NULL)) STORED,
		PRIMARY KEY (id),
		UNIQUE KEY uq_orders_pending (pending_key),
		KEY ix_orders_user_game (user_id, game_id),
		KEY ix_orders_unprocessed (is_processed, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS entitlements (
		id         CHAR(36)    NOT NULL,
		user_id    VARCHAR(64) NOT NULL,
		game_id    CHAR(36)    NOT NULL,
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_entitlements_user_game (user_id, game_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the games, orders and entitlements tables if missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
