package checkout

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/ordenes-checkout/internal/cart"
	"github.com/MikeMC777/ordenes-checkout/internal/db"
	"github.com/MikeMC777/ordenes-checkout/internal/order"
	"github.com/MikeMC777/ordenes-checkout/internal/product"
	"github.com/MikeMC777/ordenes-checkout/internal/user"
)

// PGStore binds the user, cart, product and order repositories to a single
// Postgres transaction per checkout.
type PGStore struct {
	pool    *pgxpool.Pool
	numbers order.NumberFunc
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, numbers: order.NewNumber}
}

func (s *PGStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{
			users:    user.NewPGRepo(tx),
			carts:    cart.NewPGRepo(tx),
			products: product.NewPGRepo(tx),
			orders:   order.NewPGRepo(tx).WithNumbers(s.numbers),
		})
	})
}

type pgTx struct {
	users    *user.PGRepo
	carts    *cart.PGRepo
	products *product.PGRepo
	orders   *order.PGRepo
}

func (t *pgTx) AddressOf(ctx context.Context, userID, addressID string) (*user.Address, error) {
	return t.users.AddressOf(ctx, userID, addressID)
}

func (t *pgTx) CartLines(ctx context.Context, userID string, productIDs []string) ([]cart.Line, error) {
	return t.carts.LinesFor(ctx, userID, productIDs)
}

func (t *pgTx) Product(ctx context.Context, id string) (*product.Product, error) {
	return t.products.GetByID(ctx, id)
}

func (t *pgTx) CreateOrder(ctx context.Context, o *order.Order, items []order.Item) (order.CreateResult, error) {
	return t.orders.Create(ctx, o, items)
}

func (t *pgTx) DeleteCartLines(ctx context.Context, lineIDs []string) (int64, error) {
	return t.carts.DeleteLines(ctx, lineIDs)
}
