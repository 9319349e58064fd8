// Package refund returns payments for orders through the gateway.
package refund

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
	"github.com/MikeMC777/ordenes-checkout/internal/lock"
	"github.com/MikeMC777/ordenes-checkout/internal/order"
	"github.com/MikeMC777/ordenes-checkout/internal/payment"
)

const defaultReason = "order refund"

type Gateway interface {
	Refund(ctx context.Context, req payment.RefundRequest) (payment.RefundResult, error)
}

// Initiator submits a full refund for an order. It reports what the gateway
// said and leaves the order alone.
type Initiator struct {
	gw Gateway
}

func NewInitiator(gw Gateway) *Initiator { return &Initiator{gw: gw} }

func (i *Initiator) Refund(ctx context.Context, o *order.Order) (payment.RefundResult, error) {
	return i.gw.Refund(ctx, payment.RefundRequest{
		OrderNumber: o.Number,
		Amount:      o.Total,
		Reason:      defaultReason,
	})
}

type Orders interface {
	GetByNumber(ctx context.Context, number string) (*order.Order, []order.Item, error)
	Transition(ctx context.Context, number string, t order.Transition) (*order.Order, order.Change, error)
}

type Locker interface {
	Acquire(ctx context.Context, name string) (lock.Release, error)
}

// Outcome is the state of the order after RefundOrder together with the raw
// gateway answer. Result is empty when the order was already refunded.
type Outcome struct {
	Order           *order.Order
	Result          payment.RefundResult
	AlreadyRefunded bool
}

type Service struct {
	orders    Orders
	initiator *Initiator
	locker    Locker
	now       func() time.Time
}

func NewService(orders Orders, initiator *Initiator, locker Locker) *Service {
	return &Service{orders: orders, initiator: initiator, locker: locker, now: time.Now}
}

// RefundOrder refunds the caller's order in full and moves it to refunded
// once the gateway accepts. Calling it again on a refunded order returns the
// stored state without contacting the gateway.
func (s *Service) RefundOrder(ctx context.Context, userID, number string) (*Outcome, error) {
	release, err := s.locker.Acquire(ctx, "order:"+number)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s is busy", apperr.ErrConflict, number)
	}
	defer release()

	o, _, err := s.orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, number)
	}
	if o.Status == order.StatusRefunded {
		return &Outcome{Order: o, AlreadyRefunded: true}, nil
	}
	if _, err := order.Plan(o.Status, order.EventRefund); err != nil {
		return nil, err
	}
	if !o.PaymentMethod.Online() {
		return nil, fmt.Errorf("%w: %s orders are refunded offline", apperr.ErrValidation, o.PaymentMethod)
	}

	log := slog.With("order_number", o.Number, "amount", o.Total.StringFixed(2))
	res, err := s.initiator.Refund(ctx, o)
	if err != nil {
		log.WarnContext(ctx, "refund request failed", "error", err)
		return nil, err
	}
	if !res.Succeeded() {
		log.WarnContext(ctx, "refund rejected by gateway", "code", res.Code, "sub_code", res.SubCode, "sub_msg", res.SubMsg)
		return &Outcome{Order: o, Result: res}, fmt.Errorf("%w: refund rejected: %s %s", apperr.ErrGateway, res.Code, res.SubMsg)
	}

	updated, _, err := s.orders.Transition(ctx, number, order.Transition{Event: order.EventRefund, At: s.now()})
	if err != nil {
		// Money went back; a retry reuses the same request number and lands here again.
		log.ErrorContext(ctx, "refund accepted but order not updated", "error", err)
		return nil, fmt.Errorf("record refund for %s: %w", number, err)
	}
	log.InfoContext(ctx, "order refunded", "refund_fee", res.RefundFee)
	return &Outcome{Order: updated, Result: res}, nil
}
