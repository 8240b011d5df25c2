package database

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/game-catalog/internal/model"
)

// CatalogSeeder is the part of the game store Seed needs.
type CatalogSeeder interface {
	List(ctx context.Context) ([]model.Game, error)
	Create(ctx context.Context, g model.Game) (model.Game, error)
}

// DemoGames is the catalog inserted into an empty store.
var DemoGames = []model.Game{
	{Title: "Cyber Adventure", Description: "Futuristic RPG", Price: decimal.RequireFromString("49.99")},
	{Title: "Space Battles", Description: "Multiplayer space shooter", Price: decimal.RequireFromString("29.99")},
}

// Seed inserts DemoGames when the catalog is empty and reports how many
// games were added.  A non-empty catalog is left alone.
func Seed(ctx context.Context, games CatalogSeeder) (int, error) {
	existing, err := games.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list games: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for _, g := range DemoGames {
		if _, err := games.Create(ctx, g); err != nil {
			return 0, fmt.Errorf("seed %q: %w", g.Title, err)
		}
	}
	return len(DemoGames), nil
}
