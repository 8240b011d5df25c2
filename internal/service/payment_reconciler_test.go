package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/game-catalog/internal/model"
	"github.com/iliyamo/game-catalog/internal/queue"
)

func placedOrder(t *testing.T, f *orderFixture) (model.Order, queue.PaymentProcessedEvent) {
	t.Helper()
	g := f.addGame(t, "Cyber Adventure", "49.99")
	o, err := f.svc.PlaceOrder(context.Background(), "u1", g.ID)
	require.NoError(t, err)
	return o, queue.PaymentProcessedEvent{OrderID: o.ID, UserID: "u1", GameID: g.ID, Price: g.Price}
}

func TestHandlePaymentProcessed_ApprovedIsIdempotent(t *testing.T) {
	f := newOrderFixture(t)
	o, ev := placedOrder(t, f)
	ev.Status = queue.PaymentApproved
	ctx := context.Background()

	require.NoError(t, f.reconciler.HandlePaymentProcessed(ctx, ev))
	require.NoError(t, f.reconciler.HandlePaymentProcessed(ctx, ev))

	assert.Equal(t, 1, f.entitlements.Count())
	stored, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)
}

func TestHandlePaymentProcessed_Rejected(t *testing.T) {
	f := newOrderFixture(t)
	o, ev := placedOrder(t, f)
	ev.Status = queue.PaymentRejected
	ctx := context.Background()

	require.NoError(t, f.reconciler.HandlePaymentProcessed(ctx, ev))
	require.NoError(t, f.reconciler.HandlePaymentProcessed(ctx, ev))

	assert.Zero(t, f.entitlements.Count())
	stored, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)
}

func TestHandlePaymentProcessed_UnknownStatusIsNotApproval(t *testing.T) {
	f := newOrderFixture(t)
	_, ev := placedOrder(t, f)
	ev.Status = "approved"

	require.NoError(t, f.reconciler.HandlePaymentProcessed(context.Background(), ev))
	assert.Zero(t, f.entitlements.Count())
}

func TestHandlePaymentProcessed_UnknownOrderAbsorbed(t *testing.T) {
	f := newOrderFixture(t)

	err := f.reconciler.HandlePaymentProcessed(context.Background(), queue.PaymentProcessedEvent{
		OrderID: "nope", UserID: "u1", GameID: "g1", Status: queue.PaymentApproved,
	})

	assert.NoError(t, err)
	assert.Zero(t, f.entitlements.Count())
}

func TestHandlePaymentProcessed_Malformed(t *testing.T) {
	f := newOrderFixture(t)

	for name, ev := range map[string]queue.PaymentProcessedEvent{
		"no order": {UserID: "u1", GameID: "g1", Status: queue.PaymentApproved},
		"no user":  {OrderID: "o1", GameID: "g1", Status: queue.PaymentApproved},
		"no game":  {OrderID: "o1", UserID: "u1", Status: queue.PaymentApproved},
	} {
		t.Run(name, func(t *testing.T) {
			err := f.reconciler.HandlePaymentProcessed(context.Background(), ev)
			assert.ErrorIs(t, err, ErrMalformedEvent)
			assert.ErrorIs(t, err, queue.ErrMalformed)
		})
	}
}

func TestHandlePaymentProcessed_ConcurrentRedelivery(t *testing.T) {
	f := newOrderFixture(t)
	o, ev := placedOrder(t, f)
	ev.Status = queue.PaymentApproved

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.reconciler.HandlePaymentProcessed(context.Background(), ev))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.entitlements.Count())
	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)
}

type brokenEntitlements struct{ err error }

func (b brokenEntitlements) Exists(context.Context, string, string) (bool, error) { return false, b.err }
func (b brokenEntitlements) Grant(context.Context, string, string) (bool, error)  { return false, b.err }
func (b brokenEntitlements) ListForUser(context.Context, string) ([]string, error) {
	return nil, b.err
}

func TestHandlePaymentProcessed_GrantFailureSurfaces(t *testing.T) {
	f := newOrderFixture(t)
	_, ev := placedOrder(t, f)
	ev.Status = queue.PaymentApproved
	dbDown := errors.New("db down")
	r := NewPaymentReconciler(f.orders, brokenEntitlements{dbDown}, quietLogger())

	err := r.HandlePaymentProcessed(context.Background(), ev)

	require.ErrorIs(t, err, dbDown)
	assert.NotErrorIs(t, err, queue.ErrMalformed)

	// A redelivery after recovery still grants, although the order is
	// already marked processed.
	require.NoError(t, f.reconciler.HandlePaymentProcessed(context.Background(), ev))
	assert.Equal(t, 1, f.entitlements.Count())
}
