package model

import "time"

// Order records a user's intent to buy a game.  An order starts
// unprocessed and is flipped to processed exactly once, when the payment
// service reports an outcome for it.  Orders are never deleted.
//
// Fields:
//	ID          – primary key (UUID string).
//	UserID      – purchasing user (subject of the caller's token).
//	GameID      – game being purchased.
//	IsProcessed – true once a payment result has been applied.
//	CreatedAt   – creation timestamp (UTC).
type Order struct {
	ID          string    `json:"id"`           // orders.id
	UserID      string    `json:"user_id"`      // orders.user_id
	GameID      string    `json:"game_id"`      // orders.game_id
	IsProcessed bool      `json:"is_processed"` // orders.is_processed
	CreatedAt   time.Time `json:"created_at"`   // orders.created_at
}
