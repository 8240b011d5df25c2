package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/game-catalog/internal/metrics"
	"github.com/iliyamo/game-catalog/internal/queue"
	"github.com/iliyamo/game-catalog/internal/repository"
)

// PaymentReconciler applies payment results: it closes the order and, for
// approved payments, adds the game to the buyer's library.
type PaymentReconciler struct {
	orders       OrderStore
	entitlements EntitlementStore
	log          *logrus.Entry
}

// NewPaymentReconciler wires the reconciler to its stores.
func NewPaymentReconciler(orders OrderStore, entitlements EntitlementStore, logger *logrus.Logger) *PaymentReconciler {
	if orders == nil || entitlements == nil {
		panic("nil store passed to NewPaymentReconciler")
	}
	return &PaymentReconciler{
		orders:       orders,
		entitlements: entitlements,
		log:          logger.WithField("component", "reconciler"),
	}
}

// HandlePaymentProcessed applies one payment result.  Both writes are
// idempotent, so redelivering the same event, or delivering it to several
// workers at once, converges on one processed order and at most one
// entitlement.  An event for an unknown order is logged and absorbed.
func (r *PaymentReconciler) HandlePaymentProcessed(ctx context.Context, ev queue.PaymentProcessedEvent) error {
	if ev.OrderID == "" || ev.UserID == "" || ev.GameID == "" {
		return ErrMalformedEvent
	}
	log := r.log.WithFields(logrus.Fields{
		"order_id": ev.OrderID,
		"user_id":  ev.UserID,
		"game_id":  ev.GameID,
		"status":   ev.Status,
	})

	changed, err := r.orders.MarkProcessed(ctx, ev.OrderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		metrics.UnknownOrders.Inc()
		log.Warn("payment result for unknown order; ignoring")
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark order processed: %w", err)
	}
	if !changed {
		log.Debug("order already processed; replaying side effects")
	}

	if !ev.Approved() {
		metrics.PaymentsProcessed.WithLabelValues("rejected").Inc()
		log.Info("payment rejected; no entitlement granted")
		return nil
	}

	created, err := r.entitlements.Grant(ctx, ev.UserID, ev.GameID)
	if err != nil {
		return fmt.Errorf("grant entitlement: %w", err)
	}
	metrics.PaymentsProcessed.WithLabelValues("approved").Inc()
	if created {
		metrics.EntitlementsGranted.Inc()
		log.Info("entitlement granted")
	} else {
		log.Debug("entitlement already present")
	}
	return nil
}
