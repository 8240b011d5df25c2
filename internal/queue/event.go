// Package queue defines the messages exchanged with the payment service over
// RabbitMQ together with the publisher and consumer that carry them.
package queue

import "github.com/shopspring/decimal"

// Routing keys on the topic exchanges.
const (
	RoutingKeyOrderPlaced      = "order.placed"
	RoutingKeyPaymentProcessed = "payment.processed"
)

// Payment outcomes reported by the payment service.
const (
	PaymentApproved = "Approved"
	PaymentRejected = "Rejected"
)

// OrderPlacedEvent is published once an order has been persisted.  The
// payment service charges Price and answers with a PaymentProcessedEvent
// carrying the same OrderID.
type OrderPlacedEvent struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	GameID  string          `json:"game_id"`
	Price   decimal.Decimal `json:"price"`
}

// PaymentProcessedEvent is the payment service's verdict for an order.
// Deliveries are at-least-once, so the same event may arrive repeatedly.
type PaymentProcessedEvent struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	GameID  string          `json:"game_id"`
	Price   decimal.Decimal `json:"price"`
	Status  string          `json:"status"`
}

// Approved reports whether the payment went through.  Any status other than
// "Approved" counts as not approved.
func (e PaymentProcessedEvent) Approved() bool { return e.Status == PaymentApproved }
