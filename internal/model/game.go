package model

import "github.com/shopspring/decimal"

// Column limits of the `games` table.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
)

// Game represents a catalog entry as stored in the `games` table.  The
// price is a fixed-point decimal with two fractional digits
// (DECIMAL(18,2) in MySQL).
//
// Fields:
//	ID          – primary key (UUID string).
//	Title       – display title, at most 200 characters.
//	Description – long description, at most 2000 characters.
//	Price       – current list price.
type Game struct {
	ID          string          `json:"id"`          // games.id
	Title       string          `json:"title"`       // games.title
	Description string          `json:"description"` // games.description
	Price       decimal.Decimal `json:"price"`       // games.price
}
