// Package repository holds the MySQL-backed stores for games, orders and
// entitlements, plus the sentinel errors shared by every store
// implementation (including the in-memory ones in repository/memory).
// Higher layers compare against these values with errors.Is.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrGameNotFound is returned when a game id does not exist in the catalog.
var ErrGameNotFound = errors.New("game not found")

// ErrOrderNotFound is returned when an order id does not exist.
var ErrOrderNotFound = errors.New("order not found")

// ErrOrderPending is returned by Save when an unprocessed order already
// exists for the same (user, game) pair.  In MySQL this surfaces as a
// duplicate key on orders.pending_key.
var ErrOrderPending = errors.New("unprocessed order already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
