package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
)

// Column limits: quantities are INTEGER, amounts NUMERIC(10,2).
const MaxQuantity = 9999

var MaxAmount = decimal.RequireFromString("99999999.99")

// Snapshot freezes catalog prices into order lines while a checkout is being
// assembled. The total is accumulated from the same rounded line totals that
// get stored, so Order.Total always equals the sum of its items.
type Snapshot struct {
	items []Item
	total decimal.Decimal
}

// Add freezes one line. unitPrice is the live catalog price at this moment.
func (s *Snapshot) Add(productID, productName string, unitPrice decimal.Decimal, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity for product %s must be positive, got %d", apperr.ErrValidation, productID, quantity)
	}
	if quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity for product %s exceeds %d", apperr.ErrValidation, productID, MaxQuantity)
	}
	if unitPrice.IsNegative() {
		return fmt.Errorf("%w: product %s has a negative price", apperr.ErrValidation, productID)
	}
	price := unitPrice.Round(2)
	line := price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	if line.Add(s.total).GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: order total exceeds %s", apperr.ErrValidation, MaxAmount.StringFixed(2))
	}
	s.items = append(s.items, Item{
		ProductID:   productID,
		ProductName: productName,
		UnitPrice:   price,
		Quantity:    quantity,
		TotalPrice:  line,
	})
	s.total = s.total.Add(line)
	return nil
}

func (s *Snapshot) Len() int { return len(s.items) }

func (s *Snapshot) Total() decimal.Decimal { return s.total }

// Items returns a copy of the frozen lines.
func (s *Snapshot) Items() []Item {
	return append([]Item(nil), s.items...)
}
