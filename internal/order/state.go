package order

import (
	"fmt"
	"slices"
	"time"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusShipped        Status = "shipped"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
)

var labels = map[Status]string{
	StatusPendingPayment: "待支付",
	StatusPaid:           "已支付",
	StatusShipped:        "已发货",
	StatusCompleted:      "已完成",
	StatusCancelled:      "已取消",
	StatusRefunded:       "已退款",
}

// ParseStatus accepts only the canonical English values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := labels[st]; !ok {
		return "", fmt.Errorf("%w: unknown order status %q", apperr.ErrValidation, s)
	}
	return st, nil
}

// Label is the display text shown to shoppers. It is never compared against.
func (s Status) Label() string { return labels[s] }

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

type Event string

const (
	EventPay      Event = "pay"
	EventShip     Event = "ship"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
	EventRefund   Event = "refund"
)

type rule struct {
	from []Status
	to   Status
	// reached lists the statuses in which the event has already taken effect;
	// re-applying the event there is a successful no-op.
	reached []Status
}

var rules = map[Event]rule{
	EventPay: {
		from:    []Status{StatusPendingPayment},
		to:      StatusPaid,
		reached: []Status{StatusPaid, StatusShipped, StatusCompleted, StatusRefunded},
	},
	EventShip: {
		from:    []Status{StatusPaid},
		to:      StatusShipped,
		reached: []Status{StatusShipped, StatusCompleted},
	},
	EventComplete: {
		from:    []Status{StatusShipped},
		to:      StatusCompleted,
		reached: []Status{StatusCompleted},
	},
	EventCancel: {
		from:    []Status{StatusPendingPayment},
		to:      StatusCancelled,
		reached: []Status{StatusCancelled},
	},
	EventRefund: {
		from:    []Status{StatusPaid, StatusShipped, StatusCompleted},
		to:      StatusRefunded,
		reached: []Status{StatusRefunded},
	},
}

// ParseEvent accepts the event names used by the HTTP routes.
func ParseEvent(s string) (Event, error) {
	ev := Event(s)
	if _, ok := rules[ev]; !ok {
		return "", fmt.Errorf("%w: unknown order event %q", apperr.ErrValidation, s)
	}
	return ev, nil
}

// Transition is a requested lifecycle step.
type Transition struct {
	Event   Event
	At      time.Time
	TradeNo string // only meaningful for EventPay
}

// Change is the outcome of evaluating a Transition. Applied is false when the
// event had already taken effect and nothing changed.
type Change struct {
	Event   Event
	From    Status
	To      Status
	Applied bool
}

// Plan decides what ev does to an order currently in status from.
func Plan(from Status, ev Event) (Change, error) {
	r, ok := rules[ev]
	if !ok {
		return Change{}, fmt.Errorf("%w: unknown order event %q", apperr.ErrValidation, ev)
	}
	if slices.Contains(r.reached, from) {
		return Change{Event: ev, From: from, To: from}, nil
	}
	if !slices.Contains(r.from, from) {
		return Change{}, fmt.Errorf("%w: cannot %s an order in status %s", apperr.ErrIllegalTransition, ev, from)
	}
	return Change{Event: ev, From: from, To: r.to, Applied: true}, nil
}

// Apply runs t against o, setting the status and timestamp fields the event
// owns. o is left untouched unless the returned Change is Applied.
func (o *Order) Apply(t Transition) (Change, error) {
	ch, err := Plan(o.Status, t.Event)
	if err != nil || !ch.Applied {
		return ch, err
	}
	at := t.At.UTC()
	o.Status = ch.To
	switch t.Event {
	case EventPay:
		o.PaidAt = &at
		o.TradeNo = t.TradeNo
	case EventShip:
		o.ShippedAt = &at
	case EventComplete:
		o.CompletedAt = &at
	case EventCancel:
		o.CancelledAt = &at
	case EventRefund:
		o.RefundedAt = &at
	}
	return ch, nil
}
