// Package checkout turns selected cart lines into an order. Address
// resolution, price freezing, order creation and cart pruning all run in one
// transaction: either the order exists and the purchased cart lines are gone,
// or nothing changed.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
	"github.com/MikeMC777/ordenes-checkout/internal/cart"
	"github.com/MikeMC777/ordenes-checkout/internal/order"
	"github.com/MikeMC777/ordenes-checkout/internal/product"
	"github.com/MikeMC777/ordenes-checkout/internal/user"
)

const maxRemarkLen = 500

// Tx is the view of the store available inside one checkout transaction.
type Tx interface {
	AddressOf(ctx context.Context, userID, addressID string) (*user.Address, error)
	CartLines(ctx context.Context, userID string, productIDs []string) ([]cart.Line, error)
	Product(ctx context.Context, id string) (*product.Product, error)
	CreateOrder(ctx context.Context, o *order.Order, items []order.Item) (order.CreateResult, error)
	DeleteCartLines(ctx context.Context, lineIDs []string) (int64, error)
}

// Store runs fn atomically. Returning an error from fn discards every write.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Request struct {
	UserID        string
	AddressID     string
	Lines         []Line
	PaymentMethod order.PaymentMethod
	Remark        string
}

type Result struct {
	Order    *order.Order
	Items    []order.Item
	Attempts int
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// CreateOrder validates req and creates a pending_payment order from it.
func (s *Service) CreateOrder(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	var res *Result
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		res, err = s.create(ctx, tx, req)
		return err
	})
	if err != nil {
		slog.WarnContext(ctx, "checkout failed", "user_id", req.UserID, "lines", len(req.Lines), "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "order created",
		"order_number", res.Order.Number,
		"user_id", res.Order.UserID,
		"total", res.Order.Total.StringFixed(2),
		"items", len(res.Items),
		"number_attempts", res.Attempts,
	)
	return res, nil
}

func (s *Service) create(ctx context.Context, tx Tx, req Request) (*Result, error) {
	addr, err := tx.AddressOf(ctx, req.UserID, req.AddressID)
	if err != nil {
		return nil, err
	}
	if err := addr.Deliverable(); err != nil {
		return nil, err
	}

	cartLines, err := s.selectedCartLines(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	var (
		snap    order.Snapshot
		lineIDs []string
	)
	for _, l := range req.Lines {
		qty := l.Quantity
		if l.Source == SourceCart {
			cl := cartLines[l.ProductID]
			qty = cl.Quantity
			lineIDs = append(lineIDs, cl.ID)
		}
		p, err := tx.Product(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		if err := snap.Add(p.ID, p.Name, p.Price, qty); err != nil {
			return nil, err
		}
	}

	addrID := addr.ID
	o := &order.Order{
		UserID:    req.UserID,
		AddressID: &addrID,
		Shipping: order.Shipping{
			Recipient: addr.RecipientName,
			Phone:     addr.PhoneNumber,
			Province:  addr.Province,
			City:      addr.City,
			District:  addr.District,
			Detail:    addr.Detail,
		},
		Total:         snap.Total(),
		Status:        order.StatusPendingPayment,
		PaymentMethod: req.PaymentMethod,
		Remark:        strings.TrimSpace(req.Remark),
		CreatedAt:     s.now().UTC(),
	}
	items := snap.Items()
	created, err := tx.CreateOrder(ctx, o, items)
	if err != nil {
		return nil, err
	}

	deleted, err := tx.DeleteCartLines(ctx, lineIDs)
	if err != nil {
		return nil, err
	}
	if deleted != int64(len(lineIDs)) {
		return nil, fmt.Errorf("%w: cart changed during checkout (%d of %d lines removed)", apperr.ErrConflict, deleted, len(lineIDs))
	}

	return &Result{Order: o, Items: items, Attempts: created.Attempts}, nil
}

// selectedCartLines loads the cart lines behind every cart-sourced line. A
// product that is not in the caller's cart is rejected rather than skipped.
func (s *Service) selectedCartLines(ctx context.Context, tx Tx, req Request) (map[string]cart.Line, error) {
	var ids []string
	for _, l := range req.Lines {
		if l.Source == SourceCart {
			ids = append(ids, l.ProductID)
		}
	}
	byProduct := make(map[string]cart.Line, len(ids))
	if len(ids) == 0 {
		return byProduct, nil
	}

	lines, err := tx.CartLines(ctx, req.UserID, ids)
	if err != nil {
		return nil, err
	}
	for _, cl := range lines {
		if cl.UserID == req.UserID {
			byProduct[cl.ProductID] = cl
		}
	}
	for _, id := range ids {
		if _, ok := byProduct[id]; !ok {
			return nil, fmt.Errorf("%w: product %s is not in your cart", apperr.ErrNotFound, id)
		}
	}
	return byProduct, nil
}

func validate(req Request) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: user is required", apperr.ErrValidation)
	}
	if req.AddressID == "" {
		return fmt.Errorf("%w: address_id is required", apperr.ErrValidation)
	}
	if len(req.Lines) == 0 {
		return fmt.Errorf("%w: select at least one product", apperr.ErrValidation)
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unsupported payment method %q", apperr.ErrValidation, req.PaymentMethod)
	}
	if utf8.RuneCountInString(req.Remark) > maxRemarkLen {
		return fmt.Errorf("%w: remark longer than %d characters", apperr.ErrValidation, maxRemarkLen)
	}

	seen := make(map[string]bool, len(req.Lines))
	for _, l := range req.Lines {
		if l.ProductID == "" {
			return fmt.Errorf("%w: product_id is required", apperr.ErrValidation)
		}
		if seen[l.ProductID] {
			return fmt.Errorf("%w: product %s selected twice", apperr.ErrValidation, l.ProductID)
		}
		seen[l.ProductID] = true

		switch l.Source {
		case SourceCart:
		case SourceDirect:
			if l.Quantity <= 0 {
				return fmt.Errorf("%w: quantity for product %s must be positive", apperr.ErrValidation, l.ProductID)
			}
			if l.Quantity > order.MaxQuantity {
				return fmt.Errorf("%w: quantity for product %s exceeds %d", apperr.ErrValidation, l.ProductID, order.MaxQuantity)
			}
		default:
			return fmt.Errorf("%w: unknown line source %q", apperr.ErrValidation, l.Source)
		}
	}
	return nil
}
