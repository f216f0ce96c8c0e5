// Package payments confirms provider-approved payments against pending
// orders. Confirmation validates the reported amount against the stored
// order total before any state changes, then flips the order to
// confirmed exactly once.
package payments

import (
	"context"
	"log"

	"storefront/internal/apperr"
	"storefront/internal/events"
	"storefront/internal/orders"
)

// Orders is the slice of order storage the payment flow needs.
type Orders interface {
	GetForOwner(ctx context.Context, userID, orderID string) (*orders.Order, error)
	ConfirmPending(ctx context.Context, userID, orderID string) (bool, error)
}

type Service struct {
	orders   Orders
	gateway  Gateway
	events   events.Publisher
	producer string
	logf     func(format string, args ...any)
}

// NewService constructs a payment service. gateway, publisher and logf
// may be nil.
func NewService(store Orders, gateway Gateway, publisher events.Publisher, producer string, logf func(format string, args ...any)) *Service {
	if gateway == nil {
		gateway = NopGateway{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Service{orders: store, gateway: gateway, events: publisher, producer: producer, logf: logf}
}

// Confirm validates the provider callback for orderID and marks the
// order confirmed. amount is the amount the provider reports, in minor
// units; it must equal the stored order total exactly.
func (s *Service) Confirm(ctx context.Context, userID, paymentKey, orderID string, amount int64) (*orders.Order, error) {
	if userID == "" {
		return nil, apperr.AuthRequired()
	}
	if paymentKey == "" || orderID == "" {
		return nil, apperr.New(apperr.KindValidation, "payment key and order id are required")
	}

	order, err := s.orders.GetForOwner(ctx, userID, orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "load order", err)
	}
	if order == nil {
		return nil, apperr.New(apperr.KindNotFound, "order not found")
	}
	if order.TotalAmount != amount {
		return nil, apperr.Newf(apperr.KindAmountMismatch,
			"payment amount %d does not match order total %d", amount, order.TotalAmount)
	}
	if order.Status != orders.StatusPending {
		return nil, apperr.New(apperr.KindAlreadyProcessed, "order is not awaiting payment")
	}

	if err := s.gateway.Verify(ctx, paymentKey, orderID, amount); err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "verify payment", err)
	}

	confirmed, err := s.orders.ConfirmPending(ctx, userID, orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "confirm order", err)
	}
	if !confirmed {
		// Lost the race to another confirmation of the same order.
		return nil, apperr.New(apperr.KindAlreadyProcessed, "order is not awaiting payment")
	}

	s.publishConfirmed(ctx, orderID, userID, paymentKey, amount)

	order.Status = orders.StatusConfirmed
	return order, nil
}

func (s *Service) publishConfirmed(ctx context.Context, orderID, userID, paymentKey string, amount int64) {
	env, err := events.NewEnvelope(events.EventOrderConfirmed, s.producer, orderID, events.OrderConfirmedPayload{
		OrderID:    orderID,
		UserID:     userID,
		PaymentKey: paymentKey,
		Amount:     amount,
	})
	if err != nil {
		s.logf("payments: build confirmed event for order %s: %v", orderID, err)
		return
	}
	if err := s.events.Publish(ctx, orderID, env); err != nil {
		s.logf("payments: publish confirmed event for order %s: %v", orderID, err)
	}
}
