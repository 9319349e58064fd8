// Package cart reads and prunes the shopper's cart on behalf of checkout. The
// cart itself is owned upstream: one cart per user, one line per product.
package cart

import "time"

type Line struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}
