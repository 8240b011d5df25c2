package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/game-catalog/internal/queue"
)

// ErrorKind is the stable, machine-readable code of a business error.
type ErrorKind string

const (
	KindGameNotFound        ErrorKind = "game_not_found"
	KindGameAlreadyOwned    ErrorKind = "game_already_owned"
	KindOrderAlreadyPending ErrorKind = "order_already_pending"
	KindInvalidGame         ErrorKind = "invalid_game"
)

// BusinessError is an expected rejection: the request was understood but
// cannot be honoured.  Anything that is not a *BusinessError is an
// infrastructure failure.
type BusinessError struct {
	Kind    ErrorKind
	Message string
}

func (e *BusinessError) Error() string { return string(e.Kind) + ": " + e.Message }

// Is matches any BusinessError of the same kind, so callers can write
// errors.Is(err, service.ErrGameNotFound) regardless of the message.
func (e *BusinessError) Is(target error) bool {
	t, ok := target.(*BusinessError)
	return ok && t.Kind == e.Kind
}

var (
	ErrGameNotFound        = &BusinessError{Kind: KindGameNotFound, Message: "the requested game does not exist"}
	ErrGameAlreadyOwned    = &BusinessError{Kind: KindGameAlreadyOwned, Message: "the game is already in the user's library"}
	ErrOrderAlreadyPending = &BusinessError{Kind: KindOrderAlreadyPending, Message: "an order for this game is already awaiting payment"}
)

func invalidGame(format string, args ...any) error {
	return &BusinessError{Kind: KindInvalidGame, Message: fmt.Sprintf(format, args...)}
}

// AsBusiness unwraps err into a *BusinessError if it is one.
func AsBusiness(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// ErrPublishFailed matches every PublishError.
var ErrPublishFailed = errors.New("order placed event not published")

// PublishError reports that an order was persisted but its order.placed
// event could not be published.  The order stays unprocessed until it is
// republished.
type PublishError struct {
	OrderID string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("order %s persisted but event publish failed: %v", e.OrderID, e.Err)
}

func (e *PublishError) Unwrap() []error { return []error{ErrPublishFailed, e.Err} }

// ErrMalformedEvent is returned for payment events that lack the ids needed
// to apply them.  It wraps queue.ErrMalformed so the consumer drops the
// message instead of requeueing it.
var ErrMalformedEvent = fmt.Errorf("payment event missing identifiers: %w", queue.ErrMalformed)
