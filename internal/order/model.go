package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentWallet  PaymentMethod = "wechat" // wallet transfer
	PaymentBalance PaymentMethod = "alipay" // third-party balance
	PaymentCOD     PaymentMethod = "cod"    // cash on delivery
)

// Valid reports whether m is one of the accepted payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentWallet, PaymentBalance, PaymentCOD:
		return true
	}
	return false
}

// Online reports whether the order is paid and refunded through the payment
// gateway. Wallet transfers settle outside it, like cash on delivery.
func (m PaymentMethod) Online() bool {
	return m == PaymentBalance
}

// Shipping is the delivery address copied into the order at creation, so
// later edits or deletion of the address book entry do not change it.
type Shipping struct {
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	Province  string `json:"province"`
	City      string `json:"city"`
	District  string `json:"district"`
	Detail    string `json:"detail"`
}

type Order struct {
	ID            string          `json:"id"`
	Number        string          `json:"order_number"`
	UserID        string          `json:"user_id"`
	AddressID     *string         `json:"address_id,omitempty"`
	Shipping      Shipping        `json:"shipping"`
	Total         decimal.Decimal `json:"total_amount"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	TradeNo       string          `json:"trade_no,omitempty"`
	Remark        string          `json:"remark,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	ShippedAt     *time.Time      `json:"shipped_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
}

// Item is an order line. UnitPrice is frozen from the catalog when the order
// is created and never follows later price changes.
type Item struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}
