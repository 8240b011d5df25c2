package model

import "time"

// Entitlement is a library entry: the durable record that a user owns a
// game.  The pair (UserID, GameID) is unique.
type Entitlement struct {
	ID        string    `json:"id"`         // entitlements.id
	UserID    string    `json:"user_id"`    // entitlements.user_id
	GameID    string    `json:"game_id"`    // entitlements.game_id
	CreatedAt time.Time `json:"created_at"` // entitlements.created_at
}
