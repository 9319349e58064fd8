package checkout

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
	"github.com/MikeMC777/ordenes-checkout/internal/cart"
	"github.com/MikeMC777/ordenes-checkout/internal/db"
	"github.com/MikeMC777/ordenes-checkout/internal/order"
	"github.com/MikeMC777/ordenes-checkout/internal/product"
	"github.com/MikeMC777/ordenes-checkout/internal/user"
)

func getPool(t *testing.T) *pgxpool.Pool {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	require.NoError(t, db.Migrate(ctx, pool))
	t.Cleanup(pool.Close)
	return pool
}

type seeded struct {
	userID, addressID string
	petA, petB        string
}

func seed(t *testing.T, pool *pgxpool.Pool) seeded {
	t.Helper()
	ctx := context.Background()
	s := seeded{userID: uuid.NewString(), addressID: uuid.NewString(), petA: uuid.NewString(), petB: uuid.NewString()}

	users := user.NewPGRepo(pool)
	require.NoError(t, users.Create(ctx, &user.User{ID: s.userID, Username: "buyer-" + s.userID[:8]}))
	require.NoError(t, users.CreateAddress(ctx, &user.Address{
		ID: s.addressID, UserID: s.userID, RecipientName: "Li Lei", PhoneNumber: "13800000000",
		Province: "Guangdong", City: "Shenzhen", District: "Nanshan", Detail: "1 Keji Rd",
	}))

	products := product.NewPGRepo(pool)
	require.NoError(t, products.Create(ctx, &product.Product{ID: s.petA, Name: "Pet A", Price: decimal.RequireFromString("100"), Stock: 5}))
	require.NoError(t, products.Create(ctx, &product.Product{ID: s.petB, Name: "Pet B", Price: decimal.RequireFromString("50"), Stock: 5}))

	carts := cart.NewPGRepo(pool)
	_, err := carts.AddLine(ctx, s.userID, s.petA, 1)
	require.NoError(t, err)
	_, err = carts.AddLine(ctx, s.userID, s.petB, 2)
	require.NoError(t, err)
	return s
}

func pgCartRequest(s seeded) Request {
	return Request{
		UserID:        s.userID,
		AddressID:     s.addressID,
		Lines:         []Line{FromCartLine(s.petA), FromCartLine(s.petB)},
		PaymentMethod: order.PaymentBalance,
	}
}

func TestPGStore_CheckoutIsAtomic(t *testing.T) {
	pool := getPool(t)
	s := seed(t, pool)
	ctx := context.Background()

	res, err := NewService(NewPGStore(pool)).CreateOrder(ctx, pgCartRequest(s))
	require.NoError(t, err)
	assert.Equal(t, "200.00", res.Order.Total.StringFixed(2))
	assert.Equal(t, 1, res.Attempts)

	stored, items, err := order.NewPGRepo(pool).GetByNumber(ctx, res.Order.Number)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPendingPayment, stored.Status)
	assert.Equal(t, "Li Lei", stored.Shipping.Recipient)
	require.Len(t, items, 2)

	left, err := cart.NewPGRepo(pool).LinesFor(ctx, s.userID, []string{s.petA, s.petB})
	require.NoError(t, err)
	assert.Empty(t, left)

	// a later catalog change does not reach the order
	_, err = pool.Exec(ctx, `UPDATE products SET price = 999 WHERE id = $1`, s.petA)
	require.NoError(t, err)
	again, _, err := order.NewPGRepo(pool).GetByNumber(ctx, res.Order.Number)
	require.NoError(t, err)
	assert.Equal(t, "200.00", again.Total.StringFixed(2))
}

func TestPGStore_NumberCollisionIsRetried(t *testing.T) {
	pool := getPool(t)
	ctx := context.Background()
	prefix := "T" + strings.ToUpper(uuid.NewString()[:8])

	first := seed(t, pool)
	store := NewPGStore(pool)
	store.numbers = func() string { return prefix + "-1" }
	_, err := NewService(store).CreateOrder(ctx, pgCartRequest(first))
	require.NoError(t, err)

	// second order collides once, then gets a fresh number
	second := seed(t, pool)
	calls := 0
	store.numbers = func() string {
		calls++
		if calls == 1 {
			return prefix + "-1"
		}
		return prefix + "-2"
	}
	res, err := NewService(store).CreateOrder(ctx, pgCartRequest(second))
	require.NoError(t, err)
	assert.Equal(t, prefix+"-2", res.Order.Number)
	assert.Equal(t, 2, res.Attempts)

	// a third that never gets a free number fails without leaving anything behind
	third := seed(t, pool)
	store.numbers = func() string { return prefix + "-1" }
	_, err = NewService(store).CreateOrder(ctx, pgCartRequest(third))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	left, err := cart.NewPGRepo(pool).LinesFor(ctx, third.userID, []string{third.petA, third.petB})
	require.NoError(t, err)
	assert.Len(t, left, 2)
	orders, err := order.NewPGRepo(pool).ListByUser(ctx, third.userID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPGRepo_PayIsConditionalAndRecordedOnce(t *testing.T) {
	pool := getPool(t)
	s := seed(t, pool)
	ctx := context.Background()

	res, err := NewService(NewPGStore(pool)).CreateOrder(ctx, pgCartRequest(s))
	require.NoError(t, err)

	repo := order.NewPGRepo(pool)
	paidAt := time.Date(2024, 6, 1, 4, 0, 5, 0, time.UTC)
	o, ch, err := repo.Transition(ctx, res.Order.Number, order.Transition{Event: order.EventPay, At: paidAt, TradeNo: "T-1"})
	require.NoError(t, err)
	assert.True(t, ch.Applied)
	assert.Equal(t, order.StatusPaid, o.Status)

	_, ch, err = repo.Transition(ctx, res.Order.Number, order.Transition{Event: order.EventPay, At: paidAt.Add(time.Hour), TradeNo: "T-1"})
	require.NoError(t, err)
	assert.False(t, ch.Applied)

	stored, _, err := repo.GetByNumber(ctx, res.Order.Number)
	require.NoError(t, err)
	require.NotNil(t, stored.PaidAt)
	assert.True(t, stored.PaidAt.Equal(paidAt))

	rec := order.PaymentRecord{TradeNo: "T-1", OrderNumber: res.Order.Number, TradeStatus: "TRADE_SUCCESS", ReceivedAt: paidAt}
	inserted, err := repo.RecordPayment(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = repo.RecordPayment(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)

	_, _, err = repo.Transition(ctx, res.Order.Number, order.Transition{Event: order.EventCancel, At: paidAt})
	assert.ErrorIs(t, err, apperr.ErrIllegalTransition)
}
