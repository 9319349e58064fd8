// Package reconcile applies gateway payment notifications to orders. Every
// notification may arrive more than once and concurrently with its
// duplicates; applying one twice leaves the order exactly as applying it once.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
	"github.com/MikeMC777/ordenes-checkout/internal/lock"
	"github.com/MikeMC777/ordenes-checkout/internal/order"
	"github.com/MikeMC777/ordenes-checkout/internal/payment"
)

type Store interface {
	GetByNumber(ctx context.Context, number string) (*order.Order, []order.Item, error)
	Transition(ctx context.Context, number string, t order.Transition) (*order.Order, order.Change, error)
	RecordPayment(ctx context.Context, r order.PaymentRecord) (bool, error)
}

type Verifier interface {
	VerifyNotification(params url.Values) (payment.Notification, error)
}

type Locker interface {
	Acquire(ctx context.Context, name string) (lock.Release, error)
}

type Handler struct {
	store    Store
	verifier Verifier
	locker   Locker
	appID    string
	now      func() time.Time
}

func NewHandler(store Store, verifier Verifier, locker Locker, appID string) *Handler {
	return &Handler{store: store, verifier: verifier, locker: locker, appID: appID, now: time.Now}
}

// HandleNotification verifies an asynchronous gateway notification and, when
// it reports a completed payment, reconciles the order. The returned Ack is
// written to the gateway verbatim.
func (h *Handler) HandleNotification(ctx context.Context, params url.Values) payment.Ack {
	n, err := h.verifier.VerifyNotification(params)
	if err != nil {
		slog.WarnContext(ctx, "payment notification rejected",
			"out_trade_no", params.Get("out_trade_no"), "notify_id", params.Get("notify_id"), "error", err)
		return payment.AckFailure
	}
	log := slog.With("order_number", n.OrderNumber, "trade_no", n.TradeNo, "trade_status", n.TradeStatus)

	if h.appID != "" && n.AppID != h.appID {
		log.WarnContext(ctx, "payment notification for another merchant", "app_id", n.AppID)
		return payment.AckFailure
	}
	if !n.Succeeded() {
		log.InfoContext(ctx, "payment notification acknowledged without change")
		return payment.AckSuccess
	}

	o, _, err := h.store.GetByNumber(ctx, n.OrderNumber)
	if err != nil {
		log.WarnContext(ctx, "payment notification for unknown order", "error", err)
		return payment.AckFailure
	}
	if !n.TotalAmount.Equal(o.Total) {
		log.ErrorContext(ctx, "payment amount does not match order total",
			"paid", n.TotalAmount.StringFixed(2), "total", o.Total.StringFixed(2))
		return payment.AckFailure
	}

	return h.reconcile(ctx, n)
}

// Reconcile marks the order paid with the gateway trade number and payment
// time. An order that is already paid, or has moved past paid, is left
// untouched and acknowledged.
func (h *Handler) Reconcile(ctx context.Context, orderNumber, tradeNo string, payTime time.Time) payment.Ack {
	return h.reconcile(ctx, payment.Notification{
		OrderNumber: orderNumber,
		TradeNo:     tradeNo,
		TradeStatus: payment.TradeSuccess,
		PaidAt:      payTime,
	})
}

func (h *Handler) reconcile(ctx context.Context, n payment.Notification) payment.Ack {
	log := slog.With("order_number", n.OrderNumber, "trade_no", n.TradeNo)

	release, err := h.locker.Acquire(ctx, "order:"+n.OrderNumber)
	if err != nil {
		log.WarnContext(ctx, "order lock unavailable, gateway will retry", "error", err)
		return payment.AckFailure
	}
	defer release()

	// Recorded first and at most once, so a payment stays on file even when
	// the order cannot take it.
	if _, err := h.store.RecordPayment(ctx, order.PaymentRecord{
		TradeNo:     n.TradeNo,
		OrderNumber: n.OrderNumber,
		TradeStatus: n.TradeStatus,
		NotifyID:    n.NotifyID,
		ReceivedAt:  h.now().UTC(),
	}); err != nil {
		log.ErrorContext(ctx, "record payment notification failed", "error", err)
		return payment.AckFailure
	}

	paidAt := n.PaidAt
	if paidAt.IsZero() {
		paidAt = h.now()
	}
	o, ch, err := h.store.Transition(ctx, n.OrderNumber, order.Transition{
		Event:   order.EventPay,
		At:      paidAt,
		TradeNo: n.TradeNo,
	})
	switch {
	case errors.Is(err, apperr.ErrIllegalTransition):
		// Only a cancelled order refuses payment. Redelivery cannot fix that.
		log.ErrorContext(ctx, "payment received for an order that can no longer be paid, refund manually", "error", err)
		return payment.AckSuccess
	case errors.Is(err, apperr.ErrNotFound):
		log.WarnContext(ctx, "payment for unknown order", "error", err)
		return payment.AckFailure
	case err != nil:
		log.ErrorContext(ctx, "persist payment failed", "error", err)
		return payment.AckFailure
	}

	if !ch.Applied {
		log.InfoContext(ctx, "duplicate payment notification", "status", o.Status)
		return payment.AckSuccess
	}

	log.InfoContext(ctx, "order paid", "paid_at", o.PaidAt)
	return payment.AckSuccess
}
