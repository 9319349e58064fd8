package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
	"github.com/MikeMC777/ordenes-checkout/internal/cart"
	"github.com/MikeMC777/ordenes-checkout/internal/order"
	"github.com/MikeMC777/ordenes-checkout/internal/product"
	"github.com/MikeMC777/ordenes-checkout/internal/user"
)

//
// ---------- in-memory store ----------
//

type memState struct {
	addresses map[string]user.Address
	lines     map[string]cart.Line
	products  map[string]product.Product
	orders    []order.Order
	items     map[string][]order.Item
}

func (s memState) clone() memState {
	c := memState{
		addresses: map[string]user.Address{},
		lines:     map[string]cart.Line{},
		products:  map[string]product.Product{},
		orders:    append([]order.Order(nil), s.orders...),
		items:     map[string][]order.Item{},
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]order.Item(nil), v...)
	}
	return c
}

// memStore commits the working copy only when fn succeeds, like a real
// transaction would.
type memStore struct {
	mu         sync.Mutex
	state      memState
	failCreate error
	seq        int
}

func newMemStore() *memStore {
	return &memStore{state: memState{}.clone()}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(ctx, &memTx{store: m, s: &work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) addAddress(a user.Address) { m.state.addresses[a.ID] = a }

func (m *memStore) addProduct(id, name, price string) {
	m.state.products[id] = product.Product{ID: id, Name: name, Price: decimal.RequireFromString(price)}
}

func (m *memStore) addCartLine(userID, productID string, qty int) {
	id := fmt.Sprintf("line-%s-%s", userID, productID)
	m.state.lines[id] = cart.Line{ID: id, CartID: "cart-" + userID, UserID: userID, ProductID: productID, Quantity: qty}
}

type memTx struct {
	store *memStore
	s     *memState
}

func (t *memTx) AddressOf(ctx context.Context, userID, addressID string) (*user.Address, error) {
	a, ok := t.s.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, fmt.Errorf("%w: address %s", apperr.ErrNotFound, addressID)
	}
	return &a, nil
}

func (t *memTx) CartLines(ctx context.Context, userID string, productIDs []string) ([]cart.Line, error) {
	want := map[string]bool{}
	for _, id := range productIDs {
		want[id] = true
	}
	var out []cart.Line
	for _, l := range t.s.lines {
		if l.UserID == userID && want[l.ProductID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *memTx) Product(ctx context.Context, id string) (*product.Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", apperr.ErrNotFound, id)
	}
	return &p, nil
}

func (t *memTx) CreateOrder(ctx context.Context, o *order.Order, items []order.Item) (order.CreateResult, error) {
	if t.store.failCreate != nil {
		return order.CreateResult{Attempts: order.MaxNumberAttempts}, t.store.failCreate
	}
	t.store.seq++
	o.ID = fmt.Sprintf("id-%d", t.store.seq)
	o.Number = fmt.Sprintf("N%04d", t.store.seq)
	for i := range items {
		items[i].ID = fmt.Sprintf("%s-item-%d", o.ID, i)
		items[i].OrderID = o.ID
	}
	t.s.orders = append(t.s.orders, *o)
	t.s.items[o.ID] = append([]order.Item(nil), items...)
	return order.CreateResult{Number: o.Number, Attempts: 1}, nil
}

func (t *memTx) DeleteCartLines(ctx context.Context, lineIDs []string) (int64, error) {
	var n int64
	for _, id := range lineIDs {
		if _, ok := t.s.lines[id]; ok {
			delete(t.s.lines, id)
			n++
		}
	}
	return n, nil
}

//
// ---------- helpers ----------
//

const buyer = "user-1"

func petShop() *memStore {
	m := newMemStore()
	m.addAddress(user.Address{ID: "addr-1", UserID: buyer, RecipientName: "Zhang San", PhoneNumber: "17006805888", City: "Xiangyang"})
	m.addProduct("pet-a", "Pet A", "100")
	m.addProduct("pet-b", "Pet B", "50")
	m.addCartLine(buyer, "pet-a", 1)
	m.addCartLine(buyer, "pet-b", 2)
	return m
}

func cartRequest(productIDs ...string) Request {
	req := Request{UserID: buyer, AddressID: "addr-1", PaymentMethod: order.PaymentBalance}
	for _, id := range productIDs {
		req.Lines = append(req.Lines, FromCartLine(id))
	}
	return req
}

func assertUntouched(t *testing.T, m *memStore, wantLines int) {
	t.Helper()
	assert.Empty(t, m.state.orders, "no order may be persisted")
	assert.Empty(t, m.state.items, "no line item may be persisted")
	assert.Len(t, m.state.lines, wantLines, "cart lines must survive")
}

//
// ---------- tests ----------
//

func TestCreateOrder_TwoCartLines(t *testing.T) {
	m := petShop()
	svc := NewService(m)

	res, err := svc.CreateOrder(context.Background(), cartRequest("pet-a", "pet-b"))
	require.NoError(t, err)

	assert.Equal(t, "200.00", res.Order.Total.StringFixed(2))
	assert.Equal(t, order.StatusPendingPayment, res.Order.Status)
	assert.Equal(t, "Zhang San", res.Order.Shipping.Recipient)
	require.NotNil(t, res.Order.AddressID)
	assert.Equal(t, "addr-1", *res.Order.AddressID)

	require.Len(t, m.state.orders, 1)
	items := m.state.items[res.Order.ID]
	require.Len(t, items, 2)
	assert.Equal(t, "pet-a", items[0].ProductID)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "100.00", items[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "pet-b", items[1].ProductID)
	assert.Equal(t, 2, items[1].Quantity)
	assert.Equal(t, "100.00", items[1].TotalPrice.StringFixed(2))

	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.TotalPrice)
	}
	assert.True(t, sum.Equal(m.state.orders[0].Total))
	assert.Empty(t, m.state.lines, "purchased cart lines are removed")
}

func TestCreateOrder_PriceStaysFrozen(t *testing.T) {
	m := petShop()
	svc := NewService(m)

	res, err := svc.CreateOrder(context.Background(), cartRequest("pet-a"))
	require.NoError(t, err)

	m.addProduct("pet-a", "Pet A", "999")
	stored := m.state.items[res.Order.ID][0]
	assert.Equal(t, "100.00", stored.UnitPrice.StringFixed(2))
	assert.Equal(t, "100.00", m.state.orders[0].Total.StringFixed(2))
}

func TestCreateOrder_FailureOnLastLineLeavesNoTrace(t *testing.T) {
	m := petShop()
	m.addCartLine(buyer, "ghost", 1) // in the cart but gone from the catalog
	svc := NewService(m)

	_, err := svc.CreateOrder(context.Background(), cartRequest("pet-a", "pet-b", "ghost"))
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assertUntouched(t, m, 3)
}

func TestCreateOrder_ZeroQuantityCartLineAborts(t *testing.T) {
	m := petShop()
	m.addCartLine(buyer, "pet-b", 0)
	svc := NewService(m)

	_, err := svc.CreateOrder(context.Background(), cartRequest("pet-a", "pet-b"))
	require.ErrorIs(t, err, apperr.ErrValidation)
	assertUntouched(t, m, 2)
}

func TestCreateOrder_StoreFailureRollsBack(t *testing.T) {
	m := petShop()
	m.failCreate = fmt.Errorf("%w: order number collided 3 times", apperr.ErrConflict)
	svc := NewService(m)

	_, err := svc.CreateOrder(context.Background(), cartRequest("pet-a", "pet-b"))
	require.ErrorIs(t, err, apperr.ErrConflict)
	assertUntouched(t, m, 2)
}

func TestCreateOrder_ProductNotInCallersCart(t *testing.T) {
	m := petShop()
	m.addProduct("pet-c", "Pet C", "10")
	m.addCartLine("someone-else", "pet-c", 1)
	svc := NewService(m)

	_, err := svc.CreateOrder(context.Background(), cartRequest("pet-a", "pet-c"))
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assertUntouched(t, m, 3)
}

func TestCreateOrder_AddressChecks(t *testing.T) {
	m := petShop()
	m.addAddress(user.Address{ID: "addr-other", UserID: "someone-else", RecipientName: "Li Si", PhoneNumber: "1"})
	m.addAddress(user.Address{ID: "addr-nophone", UserID: buyer, RecipientName: "Zhang San"})
	svc := NewService(m)

	req := cartRequest("pet-a")
	req.AddressID = "addr-other"
	_, err := svc.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	req.AddressID = "addr-nophone"
	_, err = svc.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assertUntouched(t, m, 2)
}

func TestCreateOrder_DirectPurchaseKeepsCart(t *testing.T) {
	m := petShop()
	svc := NewService(m)

	req := Request{
		UserID:        buyer,
		AddressID:     "addr-1",
		PaymentMethod: order.PaymentCOD,
		Lines:         []Line{FromDirectPurchase("pet-b", 3)},
		Remark:        "  leave at the door ",
	}
	res, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "150.00", res.Order.Total.StringFixed(2))
	assert.Equal(t, "leave at the door", res.Order.Remark)
	assert.Len(t, m.state.lines, 2)
}

func TestCreateOrder_TotalTooLargeAborts(t *testing.T) {
	m := petShop()
	m.addProduct("yacht", "Yacht", "99999999.00")
	svc := NewService(m)

	req := cartRequest("pet-a")
	req.Lines = append(req.Lines, FromDirectPurchase("yacht", 1))
	_, err := svc.CreateOrder(context.Background(), req)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assertUntouched(t, m, 2)
}

func TestCreateOrder_Validation(t *testing.T) {
	cases := map[string]Request{
		"no lines":       {UserID: buyer, AddressID: "addr-1", PaymentMethod: order.PaymentCOD},
		"no user":        {AddressID: "addr-1", PaymentMethod: order.PaymentCOD, Lines: []Line{FromCartLine("pet-a")}},
		"no address":     {UserID: buyer, PaymentMethod: order.PaymentCOD, Lines: []Line{FromCartLine("pet-a")}},
		"bad method":     {UserID: buyer, AddressID: "addr-1", PaymentMethod: "paypal", Lines: []Line{FromCartLine("pet-a")}},
		"duplicate":      {UserID: buyer, AddressID: "addr-1", PaymentMethod: order.PaymentCOD, Lines: []Line{FromCartLine("pet-a"), FromDirectPurchase("pet-a", 1)}},
		"zero direct":    {UserID: buyer, AddressID: "addr-1", PaymentMethod: order.PaymentCOD, Lines: []Line{FromDirectPurchase("pet-a", 0)}},
		"huge direct":    {UserID: buyer, AddressID: "addr-1", PaymentMethod: order.PaymentCOD, Lines: []Line{FromDirectPurchase("pet-a", 1<<31)}},
		"unknown source": {UserID: buyer, AddressID: "addr-1", PaymentMethod: order.PaymentCOD, Lines: []Line{{ProductID: "pet-a", Source: "wishlist"}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			m := petShop()
			_, err := NewService(m).CreateOrder(context.Background(), req)
			require.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
			assertUntouched(t, m, 2)
		})
	}
}
