package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/game-catalog/internal/metrics"
	"github.com/iliyamo/game-catalog/internal/model"
	"github.com/iliyamo/game-catalog/internal/queue"
	"github.com/iliyamo/game-catalog/internal/repository"
)

// OrderService places purchase orders and answers library queries.
type OrderService struct {
	games        GameStore
	entitlements EntitlementStore
	orders       OrderStore
	publisher    EventPublisher
	log          *logrus.Entry
	now          func() time.Time
}

// NewOrderService wires the orchestrator to its stores and publisher.
func NewOrderService(games GameStore, entitlements EntitlementStore, orders OrderStore, publisher EventPublisher, logger *logrus.Logger) *OrderService {
	if games == nil || entitlements == nil || orders == nil || publisher == nil {
		panic("nil dependency passed to NewOrderService")
	}
	return &OrderService{
		games:        games,
		entitlements: entitlements,
		orders:       orders,
		publisher:    publisher,
		log:          logger.WithField("component", "orders"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrder admits a purchase of gameID by userID, records it and
// publishes an OrderPlacedEvent.  It does not wait for payment.
//
// The admission check runs in a fixed order: the game must exist, the user
// must not own it yet and no other order for it may be awaiting payment.
// A rejection writes nothing.  Business rejections are *BusinessError; a
// failed publish after the order was stored is a *PublishError and the
// returned order is the one left unprocessed.
func (s *OrderService) PlaceOrder(ctx context.Context, userID, gameID string) (model.Order, error) {
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "game_id": gameID})

	game, err := s.games.Get(ctx, gameID)
	if errors.Is(err, repository.ErrGameNotFound) {
		return model.Order{}, s.reject(log, ErrGameNotFound)
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("load game: %w", err)
	}

	owned, err := s.entitlements.Exists(ctx, userID, gameID)
	if err != nil {
		return model.Order{}, fmt.Errorf("check entitlement: %w", err)
	}
	if owned {
		return model.Order{}, s.reject(log, ErrGameAlreadyOwned)
	}

	pending, err := s.orders.HasUnprocessed(ctx, userID, gameID)
	if err != nil {
		return model.Order{}, fmt.Errorf("check pending orders: %w", err)
	}
	if pending {
		return model.Order{}, s.reject(log, ErrOrderAlreadyPending)
	}

	order := model.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		GameID:    gameID,
		CreatedAt: s.now(),
	}
	if err := s.orders.Save(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderPending) {
			// Lost the race against a concurrent request for the same pair.
			return model.Order{}, s.reject(log, ErrOrderAlreadyPending)
		}
		return model.Order{}, fmt.Errorf("save order: %w", err)
	}
	log = log.WithField("order_id", order.ID)

	ev := queue.OrderPlacedEvent{
		OrderID: order.ID,
		UserID:  userID,
		GameID:  gameID,
		Price:   game.Price,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, ev); err != nil {
		metrics.OrphanedOrders.Inc()
		log.WithError(err).Error("order persisted but order.placed was not published")
		return order, &PublishError{OrderID: order.ID, Err: err}
	}

	metrics.OrdersPlaced.Inc()
	log.WithField("price", game.Price.StringFixed(2)).Info("order placed")
	return order, nil
}

func (s *OrderService) reject(log *logrus.Entry, be *BusinessError) error {
	metrics.OrdersRejected.WithLabelValues(string(be.Kind)).Inc()
	log.WithField("kind", be.Kind).Info("order rejected")
	return be
}

// Library returns the ids of the games userID owns.
func (s *OrderService) Library(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.entitlements.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list library: %w", err)
	}
	return ids, nil
}

// RepublishPending re-sends OrderPlacedEvent for every unprocessed order
// older than olderThan, priced at the game's current price.  Orders whose
// game has been deleted are skipped.  It returns how many events were
// published and stops at the first publish or store failure.
func (s *OrderService) RepublishPending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	orders, err := s.orders.ListUnprocessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list unprocessed orders: %w", err)
	}

	sent := 0
	for _, o := range orders {
		log := s.log.WithFields(logrus.Fields{"order_id": o.ID, "user_id": o.UserID, "game_id": o.GameID})
		game, err := s.games.Get(ctx, o.GameID)
		if errors.Is(err, repository.ErrGameNotFound) {
			log.Warn("skipping unprocessed order for a deleted game")
			continue
		}
		if err != nil {
			return sent, fmt.Errorf("load game %s: %w", o.GameID, err)
		}
		ev := queue.OrderPlacedEvent{OrderID: o.ID, UserID: o.UserID, GameID: o.GameID, Price: game.Price}
		if err := s.publisher.PublishOrderPlaced(ctx, ev); err != nil {
			return sent, &PublishError{OrderID: o.ID, Err: err}
		}
		metrics.OrdersRepublished.Inc()
		log.Info("order.placed republished")
		sent++
	}
	return sent, nil
}
