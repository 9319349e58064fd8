package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
)

func TestPlan_ForwardEdges(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
		to   Status
	}{
		{StatusPendingPayment, EventPay, StatusPaid},
		{StatusPaid, EventShip, StatusShipped},
		{StatusShipped, EventComplete, StatusCompleted},
		{StatusPendingPayment, EventCancel, StatusCancelled},
		{StatusPaid, EventRefund, StatusRefunded},
		{StatusShipped, EventRefund, StatusRefunded},
		{StatusCompleted, EventRefund, StatusRefunded},
	}
	for _, tc := range cases {
		ch, err := Plan(tc.from, tc.ev)
		require.NoError(t, err, "%s on %s", tc.ev, tc.from)
		assert.True(t, ch.Applied)
		assert.Equal(t, tc.to, ch.To)
	}
}

func TestPlan_ReappliedEventIsNoop(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
	}{
		{StatusPaid, EventPay},
		{StatusShipped, EventPay},
		{StatusCompleted, EventPay},
		{StatusRefunded, EventPay},
		{StatusShipped, EventShip},
		{StatusCompleted, EventShip},
		{StatusCompleted, EventComplete},
		{StatusCancelled, EventCancel},
		{StatusRefunded, EventRefund},
	}
	for _, tc := range cases {
		ch, err := Plan(tc.from, tc.ev)
		require.NoError(t, err, "%s on %s", tc.ev, tc.from)
		assert.False(t, ch.Applied)
		assert.Equal(t, tc.from, ch.To, "status must not regress")
	}
}

func TestPlan_IllegalTransitions(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
	}{
		{StatusPendingPayment, EventShip},
		{StatusPendingPayment, EventComplete},
		{StatusPendingPayment, EventRefund},
		{StatusPaid, EventCancel},
		{StatusPaid, EventComplete},
		{StatusCancelled, EventPay},
		{StatusCancelled, EventShip},
		{StatusRefunded, EventShip},
	}
	for _, tc := range cases {
		_, err := Plan(tc.from, tc.ev)
		assert.ErrorIs(t, err, apperr.ErrIllegalTransition, "%s on %s", tc.ev, tc.from)
	}
}

func TestApply_PaySetsTradeReferenceAndTime(t *testing.T) {
	o := &Order{Number: "N1", Status: StatusPendingPayment}
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	ch, err := o.Apply(Transition{Event: EventPay, At: at, TradeNo: "T-1"})
	require.NoError(t, err)
	assert.True(t, ch.Applied)
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, "T-1", o.TradeNo)
	require.NotNil(t, o.PaidAt)
	assert.True(t, o.PaidAt.Equal(at))

	// a redelivered payment keeps the first pay time and reference
	ch, err = o.Apply(Transition{Event: EventPay, At: at.Add(time.Hour), TradeNo: "T-2"})
	require.NoError(t, err)
	assert.False(t, ch.Applied)
	assert.Equal(t, "T-1", o.TradeNo)
	assert.True(t, o.PaidAt.Equal(at))
}

func TestApply_ShipOnPendingLeavesOrderUntouched(t *testing.T) {
	o := &Order{Status: StatusPendingPayment}
	_, err := o.Apply(Transition{Event: EventShip, At: time.Now()})
	assert.ErrorIs(t, err, apperr.ErrIllegalTransition)
	assert.Equal(t, StatusPendingPayment, o.Status)
	assert.Nil(t, o.ShippedAt)
}

func TestApply_PayOnCompletedIsNoop(t *testing.T) {
	o := &Order{Status: StatusCompleted}
	ch, err := o.Apply(Transition{Event: EventPay, At: time.Now(), TradeNo: "late"})
	require.NoError(t, err)
	assert.False(t, ch.Applied)
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Empty(t, o.TradeNo)
}

func TestParseStatusAndEvent(t *testing.T) {
	st, err := ParseStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)
	assert.Equal(t, "已发货", st.Label())

	_, err = ParseStatus("待支付")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = ParseEvent("teleport")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPaymentMethod_OnlyBalanceGoesThroughGateway(t *testing.T) {
	assert.True(t, PaymentBalance.Online())
	assert.False(t, PaymentWallet.Online())
	assert.False(t, PaymentCOD.Online())
	assert.True(t, PaymentWallet.Valid())
}
