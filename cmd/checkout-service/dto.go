package main

import (
	"encoding/json"

	"github.com/MikeMC777/ordenes-checkout/internal/order"
)

// CheckoutLine payload of one selected product. Price is what the page
// showed; the catalog price at checkout time is charged instead.
// swagger:model CheckoutLine
type CheckoutLine struct {
	ProductID string `json:"product_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity" example:"2"`
	Price     string `json:"price,omitempty" example:"100.00"`
	Source    string `json:"source,omitempty" example:"cart" enums:"cart,direct"`
}

// CheckoutRequest payload of POST /checkout.
// swagger:model CheckoutRequest
type CheckoutRequest struct {
	AddressID     string         `json:"address_id" example:"b2f5ff47-2b1e-4f22-8a96-5f3c1f2f2e7b"`
	PaymentMethod string         `json:"payment_method" example:"alipay" enums:"wechat,alipay,cod"`
	Remark        string         `json:"remark,omitempty" example:"leave at the door"`
	Lines         []CheckoutLine `json:"lines"`
}

// swagger:model CheckoutResponse
type CheckoutResponse struct {
	Success bool         `json:"success" example:"true"`
	Message string       `json:"message" example:"order created"`
	Order   *order.Order `json:"order"`
	Items   []order.Item `json:"items"`
	PayURL  string       `json:"pay_url,omitempty"`
}

// swagger:model OrderResponse
type OrderResponse struct {
	Success bool         `json:"success" example:"true"`
	Message string       `json:"message,omitempty"`
	Order   *order.Order `json:"order"`
	Items   []order.Item `json:"items,omitempty"`
	Applied *bool        `json:"applied,omitempty"`
}

// swagger:model OrderListResponse
type OrderListResponse struct {
	Success bool          `json:"success" example:"true"`
	Orders  []order.Order `json:"orders"`
	Limit   int           `json:"limit" example:"20"`
	Offset  int           `json:"offset" example:"0"`
}

// RefundResponse carries the gateway answer exactly as received.
// swagger:model RefundResponse
type RefundResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message"`
	Order   *order.Order    `json:"order,omitempty"`
	Result  json.RawMessage `json:"result,omitempty" swaggertype:"object"`
}

// returnView is bound to the payment return page.
type returnView struct {
	Verified    bool
	OrderNumber string
	Amount      string
	TradeNo     string
}
