// Package payment is the adapter to the third-party payment gateway. It signs
// outbound requests, verifies asynchronous notifications and synchronous
// returns, and submits refunds.
package payment

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
	"github.com/MikeMC777/ordenes-checkout/internal/order"
)

const (
	methodPagePay = "alipay.trade.page.pay"
	methodRefund  = "alipay.trade.refund"
	productCode   = "FAST_INSTANT_TRADE_PAY"
	timeLayout    = "2006-01-02 15:04:05"

	// refundSuccessCode is the gateway business code for an accepted refund.
	refundSuccessCode = "10000"
)

// gatewayZone is the timezone of every timestamp exchanged with the gateway.
var gatewayZone = loadZone("Asia/Shanghai")

func loadZone(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}

type Config struct {
	GatewayURL          string
	AppID               string
	// PEM or the bare base64 body
	PrivateKeyPEM       string
	GatewayPublicKeyPEM string
	SignType            string
	ReturnURL           string
	NotifyURL           string
	Timeout             time.Duration
	// PaymentTTL closes the gateway payment window that long after the order
	// was created. Zero leaves the gateway default.
	PaymentTTL          time.Duration
}

type Client struct {
	cfg  Config
	priv *rsa.PrivateKey
	pub  *rsa.PublicKey
	http *http.Client
	now  func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.GatewayURL == "" || cfg.AppID == "" {
		return nil, fmt.Errorf("payment: gateway url and app id are required")
	}
	if cfg.SignType == "" {
		cfg.SignType = SignTypeRSA2
	}
	if _, err := hashFor(cfg.SignType); err != nil {
		return nil, fmt.Errorf("payment: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	priv, err := ParsePrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("payment: %w", err)
	}
	pub, err := ParsePublicKey(cfg.GatewayPublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("payment: %w", err)
	}
	return &Client{
		cfg:  cfg,
		priv: priv,
		pub:  pub,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}, nil
}

func (c *Client) AppID() string { return c.cfg.AppID }

func (c *Client) commonParams(method string) url.Values {
	v := url.Values{}
	v.Set("app_id", c.cfg.AppID)
	v.Set("method", method)
	v.Set("format", "JSON")
	v.Set("charset", "utf-8")
	v.Set("sign_type", c.cfg.SignType)
	v.Set("timestamp", c.now().In(gatewayZone).Format(timeLayout))
	v.Set("version", "1.0")
	return v
}

func (c *Client) signParams(v url.Values) error {
	sig, err := sign(c.priv, c.cfg.SignType, requestContent(v))
	if err != nil {
		return fmt.Errorf("payment: sign request: %w", err)
	}
	v.Set("sign", sig)
	return nil
}

type pagePayContent struct {
	OutTradeNo  string `json:"out_trade_no"`
	TotalAmount string `json:"total_amount"`
	Subject     string `json:"subject"`
	ProductCode string `json:"product_code"`
	TimeExpire  string `json:"time_expire,omitempty"`
}

// BuildPaymentRequest returns the signed URL the buyer is redirected to in
// order to pay o. Only pending, online-paid orders can be paid.
func (c *Client) BuildPaymentRequest(o *order.Order) (string, error) {
	if o.Status != order.StatusPendingPayment {
		return "", fmt.Errorf("%w: order %s is %s", apperr.ErrIllegalTransition, o.Number, o.Status)
	}
	if !o.Total.IsPositive() {
		return "", fmt.Errorf("%w: order %s has no amount to pay", apperr.ErrValidation, o.Number)
	}

	biz := pagePayContent{
		OutTradeNo:  o.Number,
		TotalAmount: o.Total.StringFixed(2),
		Subject:     "Order " + o.Number,
		ProductCode: productCode,
	}
	if deadline, ok := c.payDeadline(o); ok {
		if !deadline.After(c.now()) {
			return "", fmt.Errorf("%w: payment window for order %s closed at %s", apperr.ErrConflict, o.Number, deadline.UTC().Format(time.RFC3339))
		}
		biz.TimeExpire = deadline.In(gatewayZone).Format(timeLayout)
	}
	content, err := json.Marshal(biz)
	if err != nil {
		return "", err
	}

	v := c.commonParams(methodPagePay)
	v.Set("return_url", c.cfg.ReturnURL)
	v.Set("notify_url", c.cfg.NotifyURL)
	v.Set("biz_content", string(content))
	if err := c.signParams(v); err != nil {
		return "", err
	}
	return c.cfg.GatewayURL + "?" + v.Encode(), nil
}

// payDeadline is the moment the order stops being payable. It never falls
// after the cutoff used to cancel unpaid orders.
func (c *Client) payDeadline(o *order.Order) (time.Time, bool) {
	if c.cfg.PaymentTTL <= 0 || o.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	return o.CreatedAt.Add(c.cfg.PaymentTTL).Truncate(time.Second), true
}

// VerifyNotification checks the gateway signature over params and decodes
// them. It serves both the asynchronous notification and the synchronous
// return, which carry the same signing scheme.
func (c *Client) VerifyNotification(params url.Values) (Notification, error) {
	signType := params.Get("sign_type")
	if signType == "" {
		signType = c.cfg.SignType
	}
	if err := verify(c.pub, signType, CanonicalString(params), params.Get("sign")); err != nil {
		return Notification{}, err
	}
	return parseNotification(params)
}

type RefundRequest struct {
	OrderNumber string
	Amount      decimal.Decimal
	Reason      string
}

// RefundResult is the decoded gateway answer. Raw keeps the body as received.
type RefundResult struct {
	Code       string `json:"code"`
	Msg        string `json:"msg"`
	SubCode    string `json:"sub_code"`
	SubMsg     string `json:"sub_msg"`
	TradeNo    string `json:"trade_no"`
	OutTradeNo string `json:"out_trade_no"`
	RefundFee  string `json:"refund_fee"`
	FundChange string `json:"fund_change"`
	Raw        string `json:"-"`
}

// Succeeded reports whether the gateway accepted the refund.
func (r RefundResult) Succeeded() bool { return r.Code == refundSuccessCode }

type refundContent struct {
	OutTradeNo   string `json:"out_trade_no"`
	RefundAmount string `json:"refund_amount"`
	RefundReason string `json:"refund_reason,omitempty"`
	OutRequestNo string `json:"out_request_no"`
}

type refundEnvelope struct {
	Response *RefundResult `json:"alipay_trade_refund_response"`
}

// Refund asks the gateway to return req.Amount for the order. A business
// rejection comes back as a result with a non-success code; transport
// failures and unreadable answers are ErrGateway.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if req.OrderNumber == "" || !req.Amount.IsPositive() {
		return RefundResult{}, fmt.Errorf("%w: refund needs an order number and a positive amount", apperr.ErrValidation)
	}
	content, err := json.Marshal(refundContent{
		OutTradeNo:   req.OrderNumber,
		RefundAmount: req.Amount.StringFixed(2),
		RefundReason: req.Reason,
		// one full refund per order, so the order number keeps retries idempotent
		OutRequestNo: req.OrderNumber,
	})
	if err != nil {
		return RefundResult{}, err
	}
	v := c.commonParams(methodRefund)
	v.Set("biz_content", string(content))
	if err := c.signParams(v); err != nil {
		return RefundResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL, strings.NewReader(v.Encode()))
	if err != nil {
		return RefundResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return RefundResult{}, fmt.Errorf("%w: refund request: %v", apperr.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RefundResult{}, fmt.Errorf("%w: read refund response: %v", apperr.ErrGateway, err)
	}
	if resp.StatusCode != http.StatusOK {
		return RefundResult{}, fmt.Errorf("%w: refund returned HTTP %d", apperr.ErrGateway, resp.StatusCode)
	}

	var env refundEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Response == nil {
		return RefundResult{}, fmt.Errorf("%w: malformed refund response", apperr.ErrGateway)
	}
	res := *env.Response
	res.Raw = string(body)
	return res, nil
}
