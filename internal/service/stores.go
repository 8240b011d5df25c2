// Package service implements the catalog's business logic: catalog
// management, the order orchestrator and the payment-result reconciler.
// It depends only on the store and publisher contracts below, so it runs
// unchanged against MySQL, the in-memory stores or test fakes.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/game-catalog/internal/model"
	"github.com/iliyamo/game-catalog/internal/queue"
)

// GameStore is the catalog store.  Get and Update report
// repository.ErrGameNotFound for unknown ids; Delete of an unknown id is
// a no-op.
type GameStore interface {
	List(ctx context.Context) ([]model.Game, error)
	Get(ctx context.Context, id string) (model.Game, error)
	Create(ctx context.Context, g model.Game) (model.Game, error)
	Update(ctx context.Context, g model.Game) error
	Delete(ctx context.Context, id string) error
}

// EntitlementStore records which users own which games.  Grant is
// idempotent.
type EntitlementStore interface {
	Exists(ctx context.Context, userID, gameID string) (bool, error)
	Grant(ctx context.Context, userID, gameID string) (created bool, err error)
	ListForUser(ctx context.Context, userID string) ([]string, error)
}

// OrderStore records purchase intents.  Save reports
// repository.ErrOrderPending when an unprocessed order for the pair exists;
// MarkProcessed is idempotent and reports repository.ErrOrderNotFound for
// unknown ids.
type OrderStore interface {
	HasUnprocessed(ctx context.Context, userID, gameID string) (bool, error)
	Save(ctx context.Context, o model.Order) error
	MarkProcessed(ctx context.Context, orderID string) (changed bool, err error)
	GetByID(ctx context.Context, id string) (model.Order, error)
	ListUnprocessedBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error)
}

// EventPublisher announces placed orders on the message bus.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, ev queue.OrderPlacedEvent) error
}
