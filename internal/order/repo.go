package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
	"github.com/MikeMC777/ordenes-checkout/internal/db"
)

const numberConstraint = "orders_order_number_key"

// maxRaceRetries bounds how often Transition re-reads an order whose status
// changed between the read and the conditional update.
const maxRaceRetries = 3

// PaymentRecord is one accepted gateway notification, keyed by the gateway
// trade number and the order number.
type PaymentRecord struct {
	TradeNo     string
	OrderNumber string
	TradeStatus string
	NotifyID    string
	ReceivedAt  time.Time
}

type Repository interface {
	// Create inserts o and its items, assigning o.ID, o.Number and the item
	// ids. Collisions on the order number are retried up to MaxNumberAttempts.
	Create(ctx context.Context, o *Order, items []Item) (CreateResult, error)
	GetByNumber(ctx context.Context, number string) (*Order, []Item, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error)
	// Transition applies t with a conditional update on the current status.
	Transition(ctx context.Context, number string, t Transition) (*Order, Change, error)
	// RecordPayment stores r once; a duplicate returns false and no error.
	RecordPayment(ctx context.Context, r PaymentRecord) (bool, error)
}

type PGRepo struct {
	db      db.DBTX
	numbers NumberFunc
}

func NewPGRepo(conn db.DBTX) *PGRepo { return &PGRepo{db: conn, numbers: NewNumber} }

// WithNumbers swaps the order number source. Used to force collisions in tests.
func (r *PGRepo) WithNumbers(fn NumberFunc) *PGRepo {
	return &PGRepo{db: r.db, numbers: fn}
}

func (r *PGRepo) Create(ctx context.Context, o *Order, items []Item) (CreateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusPendingPayment
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	for attempt := 1; attempt <= MaxNumberAttempts; attempt++ {
		o.Number = r.numbers()
		err := r.insert(ctx, o, items)
		if err == nil {
			return CreateResult{Number: o.Number, Attempts: attempt}, nil
		}
		if !db.IsUniqueViolation(err, numberConstraint) {
			return CreateResult{Attempts: attempt}, err
		}
	}
	o.Number = ""
	return CreateResult{Attempts: MaxNumberAttempts},
		fmt.Errorf("%w: order number collided %d times", apperr.ErrConflict, MaxNumberAttempts)
}

// insert writes one attempt inside its own savepoint so a collision does not
// poison an enclosing transaction.
func (r *PGRepo) insert(ctx context.Context, o *Order, items []Item) error {
	sp, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sp.Rollback(ctx) }()

	if _, err := sp.Exec(ctx, `
    INSERT INTO orders (id, order_number, user_id, address_id,
      ship_recipient, ship_phone, ship_province, ship_city, ship_district, ship_detail,
      total_amount, status, payment_method, remark, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
  `, o.ID, o.Number, o.UserID, o.AddressID,
		o.Shipping.Recipient, o.Shipping.Phone, o.Shipping.Province, o.Shipping.City, o.Shipping.District, o.Shipping.Detail,
		o.Total.StringFixed(2), string(o.Status), string(o.PaymentMethod), o.Remark, o.CreatedAt); err != nil {
		return err
	}

	for i := range items {
		it := &items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = o.ID
		if _, err := sp.Exec(ctx, `
      INSERT INTO order_items (id, order_id, product_id, product_name, price, quantity, total_price)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, it.ID, o.ID, it.ProductID, it.ProductName, it.UnitPrice.StringFixed(2), it.Quantity, it.TotalPrice.StringFixed(2)); err != nil {
			return err
		}
	}
	return sp.Commit(ctx)
}

const orderColumns = `id, order_number, user_id, address_id,
  ship_recipient, ship_phone, ship_province, ship_city, ship_district, ship_detail,
  total_amount::text, status, payment_method, trade_no, remark,
  created_at, paid_at, shipped_at, completed_at, cancelled_at, refunded_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		total  string
		status string
		method string
	)
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.AddressID,
		&o.Shipping.Recipient, &o.Shipping.Phone, &o.Shipping.Province, &o.Shipping.City, &o.Shipping.District, &o.Shipping.Detail,
		&total, &status, &method, &o.TradeNo, &o.Remark,
		&o.CreatedAt, &o.PaidAt, &o.ShippedAt, &o.CompletedAt, &o.CancelledAt, &o.RefundedAt)
	if err != nil {
		return nil, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s total %q: %w", o.Number, total, err)
	}
	o.Status = Status(status)
	o.PaymentMethod = PaymentMethod(method)
	return &o, nil
}

func (r *PGRepo) getByNumber(ctx context.Context, number string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number=$1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, number)
	}
	return o, err
}

func (r *PGRepo) GetByNumber(ctx context.Context, number string) (*Order, []Item, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	o, err := r.getByNumber(ctx, number)
	if err != nil {
		return nil, nil, err
	}
	items, err := r.items(ctx, o.ID)
	if err != nil {
		return nil, nil, err
	}
	return o, items, nil
}

func (r *PGRepo) items(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, product_id, product_name, price::text, quantity, total_price::text
    FROM order_items
    WHERE order_id = $1
    ORDER BY id
  `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it           Item
			price, total string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &price, &it.Quantity, &total); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if it.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1
    ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
}

func (r *PGRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE status=$1 AND created_at < $2
    ORDER BY created_at LIMIT $3`, string(StatusPendingPayment), cutoff, limit)
}

func (r *PGRepo) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PGRepo) Transition(ctx context.Context, number string, t Transition) (*Order, Change, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	for i := 0; i < maxRaceRetries; i++ {
		o, err := r.getByNumber(ctx, number)
		if err != nil {
			return nil, Change{}, err
		}
		ch, err := o.Apply(t)
		if err != nil || !ch.Applied {
			return o, ch, err
		}

		tag, err := r.db.Exec(ctx, `
      UPDATE orders
      SET status = $3, trade_no = $4, paid_at = $5, shipped_at = $6,
          completed_at = $7, cancelled_at = $8, refunded_at = $9
      WHERE id = $1 AND status = $2
    `, o.ID, string(ch.From), string(o.Status), o.TradeNo,
			o.PaidAt, o.ShippedAt, o.CompletedAt, o.CancelledAt, o.RefundedAt)
		if err != nil {
			return nil, Change{}, err
		}
		if tag.RowsAffected() == 1 {
			return o, ch, nil
		}
		// Another writer moved the order first; evaluate again against its status.
	}
	return nil, Change{}, fmt.Errorf("%w: order %s kept changing during %s", apperr.ErrConflict, number, t.Event)
}

func (r *PGRepo) RecordPayment(ctx context.Context, rec PaymentRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
    INSERT INTO payment_notifications (trade_no, order_number, trade_status, notify_id, received_at)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (trade_no, order_number) DO NOTHING
  `, rec.TradeNo, rec.OrderNumber, rec.TradeStatus, rec.NotifyID, rec.ReceivedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
