package payment

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
)

const (
	TradeSuccess  = "TRADE_SUCCESS"
	TradeFinished = "TRADE_FINISHED"
	TradeClosed   = "TRADE_CLOSED"
	WaitBuyerPay  = "WAIT_BUYER_PAY"
)

// Ack is the literal body the gateway expects in answer to a notification.
// Anything other than AckSuccess makes it retry.
type Ack string

const (
	AckSuccess Ack = "success"
	AckFailure Ack = "failure"
)

// Notification is a verified gateway callback.
type Notification struct {
	OrderNumber string
	TradeNo     string
	TradeStatus string
	AppID       string
	NotifyID    string
	TotalAmount decimal.Decimal
	PaidAt      time.Time // zero when gmt_payment is absent or unreadable
	CreatedAt   time.Time
}

// Succeeded reports whether the trade status means the buyer has paid.
func (n Notification) Succeeded() bool {
	switch n.TradeStatus {
	case TradeSuccess, TradeFinished:
		return true
	}
	return false
}

func parseNotification(v url.Values) (Notification, error) {
	n := Notification{
		OrderNumber: v.Get("out_trade_no"),
		TradeNo:     v.Get("trade_no"),
		TradeStatus: v.Get("trade_status"),
		AppID:       v.Get("app_id"),
		NotifyID:    v.Get("notify_id"),
	}
	if n.OrderNumber == "" {
		return Notification{}, fmt.Errorf("%w: out_trade_no is missing", apperr.ErrValidation)
	}
	if s := v.Get("total_amount"); s != "" {
		amt, err := decimal.NewFromString(s)
		if err != nil {
			return Notification{}, fmt.Errorf("%w: total_amount %q", apperr.ErrValidation, s)
		}
		n.TotalAmount = amt
	}
	n.PaidAt = parseGatewayTime(v.Get("gmt_payment"))
	n.CreatedAt = parseGatewayTime(v.Get("gmt_create"))
	return n, nil
}

// parseGatewayTime returns the zero time for an absent or unreadable value;
// the caller substitutes its own clock.
func parseGatewayTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timeLayout, s, gatewayZone)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
