package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Address is an entry in the buyer's address book.
type Address struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	RecipientName string `json:"recipient_name"`
	PhoneNumber   string `json:"phone_number"`
	Province      string `json:"province"`
	City          string `json:"city"`
	District      string `json:"district"`
	Detail        string `json:"detail_address"`
	IsDefault     bool   `json:"is_default"`
}

// Deliverable checks the fields a shipment cannot go out without.
func (a *Address) Deliverable() error {
	if strings.TrimSpace(a.RecipientName) == "" {
		return fmt.Errorf("%w: address %s has no recipient name", apperr.ErrValidation, a.ID)
	}
	if strings.TrimSpace(a.PhoneNumber) == "" {
		return fmt.Errorf("%w: address %s has no phone number", apperr.ErrValidation, a.ID)
	}
	return nil
}
