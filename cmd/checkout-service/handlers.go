package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
	"github.com/MikeMC777/ordenes-checkout/internal/checkout"
	"github.com/MikeMC777/ordenes-checkout/internal/httpx"
	"github.com/MikeMC777/ordenes-checkout/internal/order"
	"github.com/MikeMC777/ordenes-checkout/internal/payment"
	"github.com/MikeMC777/ordenes-checkout/internal/refund"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

type paymentGateway interface {
	BuildPaymentRequest(o *order.Order) (string, error)
	VerifyNotification(params url.Values) (payment.Notification, error)
}

type notificationHandler interface {
	HandleNotification(ctx context.Context, params url.Values) payment.Ack
}

type refunder interface {
	RefundOrder(ctx context.Context, userID, number string) (*refund.Outcome, error)
}

type orderStore interface {
	GetByNumber(ctx context.Context, number string) (*order.Order, []order.Item, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, error)
	Transition(ctx context.Context, number string, t order.Transition) (*order.Order, order.Change, error)
}

type tracker interface {
	QueryRoute(ctx context.Context, orderNumber string) (json.RawMessage, error)
}

// createCheckoutHandler godoc
// @Summary      Create an order from selected products
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header  string           true   "caller"
// @Param        redirect   query   int              false  "1 to answer with a redirect to the payment page"
// @Param        body       body    CheckoutRequest  true   "selection"
// @Success      201  {object}  CheckoutResponse
// @Success      303
// @Failure      400  {object}  httpx.ErrorResponse
// @Failure      404  {object}  httpx.ErrorResponse
// @Failure      409  {object}  httpx.ErrorResponse
// @Router       /checkout [post]
func createCheckoutHandler(svc orderCreator, gw paymentGateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := httpx.UserID(c)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		var in CheckoutRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.WriteError(c, fmt.Errorf("%w: invalid json: %v", apperr.ErrValidation, err))
			return
		}

		req := checkout.Request{
			UserID:        uid,
			AddressID:     in.AddressID,
			PaymentMethod: order.PaymentMethod(in.PaymentMethod),
			Remark:        in.Remark,
		}
		for _, l := range in.Lines {
			switch checkout.Source(l.Source) {
			case checkout.SourceDirect:
				req.Lines = append(req.Lines, checkout.FromDirectPurchase(l.ProductID, l.Quantity))
			case checkout.SourceCart, "":
				req.Lines = append(req.Lines, checkout.FromCartLine(l.ProductID))
			default:
				req.Lines = append(req.Lines, checkout.Line{ProductID: l.ProductID, Quantity: l.Quantity, Source: checkout.Source(l.Source)})
			}
		}

		res, err := svc.CreateOrder(c.Request.Context(), req)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}

		out := CheckoutResponse{Success: true, Message: "order created", Order: res.Order, Items: res.Items}
		if res.Order.PaymentMethod.Online() {
			payURL, err := gw.BuildPaymentRequest(res.Order)
			if err != nil {
				// the order stands; the buyer can pay it later
				slog.ErrorContext(c.Request.Context(), "build payment request failed", "order_number", res.Order.Number, "error", err)
				out.Message = "order created, payment link unavailable"
			} else {
				out.PayURL = payURL
			}
		}
		if out.PayURL != "" && c.Query("redirect") == "1" {
			c.Redirect(http.StatusSeeOther, out.PayURL)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

// paymentNotifyHandler godoc
// @Summary      Asynchronous payment notification
// @Tags         payments
// @Accept       x-www-form-urlencoded
// @Produce      plain
// @Success      200  {string}  string  "success or failure"
// @Router       /payments/notify [post]
func paymentNotifyHandler(h notificationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			slog.WarnContext(c.Request.Context(), "unreadable payment notification", "error", err)
			c.String(http.StatusOK, string(payment.AckFailure))
			return
		}
		c.String(http.StatusOK, string(h.HandleNotification(c.Request.Context(), c.Request.PostForm)))
	}
}

// paymentReturnHandler godoc
// @Summary      Page shown after the buyer returns from the payment page
// @Tags         payments
// @Produce      html
// @Success      200
// @Router       /payments/return [get]
func paymentReturnHandler(gw paymentGateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := c.Request.URL.Query()
		view := returnView{OrderNumber: params.Get("out_trade_no")}

		n, err := gw.VerifyNotification(params)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "payment return not verified", "order_number", view.OrderNumber, "error", err)
		} else {
			view.Verified = true
			view.OrderNumber = n.OrderNumber
			view.TradeNo = n.TradeNo
			if !n.TotalAmount.IsZero() {
				view.Amount = n.TotalAmount.StringFixed(2)
			}
		}
		c.HTML(http.StatusOK, "payment_return.tmpl", view)
	}
}

// refundOrderHandler godoc
// @Summary      Refund an order in full
// @Tags         orders
// @Produce      json
// @Param        X-User-ID  header  string  true  "caller"
// @Param        number     path    string  true  "order number"
// @Success      200  {object}  RefundResponse
// @Failure      409  {object}  httpx.ErrorResponse
// @Failure      502  {object}  RefundResponse
// @Router       /orders/{number}/refund [post]
func refundOrderHandler(svc refunder) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := httpx.UserID(c)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		out, err := svc.RefundOrder(c.Request.Context(), uid, c.Param("number"))
		if err != nil {
			if out != nil && out.Result.Raw != "" {
				c.JSON(apperr.HTTPStatus(err), RefundResponse{
					Error:   apperr.Code(err),
					Message: err.Error(),
					Order:   out.Order,
					Result:  json.RawMessage(out.Result.Raw),
				})
				return
			}
			httpx.WriteError(c, err)
			return
		}

		resp := RefundResponse{Success: true, Message: "order refunded", Order: out.Order}
		if out.AlreadyRefunded {
			resp.Message = "order already refunded"
		} else if json.Valid([]byte(out.Result.Raw)) {
			resp.Result = json.RawMessage(out.Result.Raw)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ownedOrder loads the order and hides it from anyone but its owner.
func ownedOrder(c *gin.Context, repo orderStore) (*order.Order, []order.Item, error) {
	uid, err := httpx.UserID(c)
	if err != nil {
		return nil, nil, err
	}
	number := c.Param("number")
	o, items, err := repo.GetByNumber(c.Request.Context(), number)
	if err != nil {
		return nil, nil, err
	}
	if o.UserID != uid {
		return nil, nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, number)
	}
	return o, items, nil
}

// getOrderHandler godoc
// @Summary      Get an order with its items
// @Tags         orders
// @Produce      json
// @Param        X-User-ID  header  string  true  "caller"
// @Param        number     path    string  true  "order number"
// @Success      200  {object}  OrderResponse
// @Failure      404  {object}  httpx.ErrorResponse
// @Router       /orders/{number} [get]
func getOrderHandler(repo orderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, items, err := ownedOrder(c, repo)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, OrderResponse{Success: true, Order: o, Items: items})
	}
}

// listOrdersByUserHandler godoc
// @Summary      List a user's orders, newest first
// @Tags         orders
// @Produce      json
// @Param        X-User-ID  header  string  true   "caller"
// @Param        user_id    path    string  true   "user id"
// @Param        limit      query   int     false  "page size (max 100)"
// @Param        offset     query   int     false  "offset"
// @Success      200  {object}  OrderListResponse
// @Router       /orders/user/{user_id} [get]
func listOrdersByUserHandler(repo orderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := httpx.UserID(c)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if c.Param("user_id") != uid {
			httpx.WriteError(c, fmt.Errorf("%w: user %s", apperr.ErrNotFound, c.Param("user_id")))
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		if offset < 0 {
			offset = 0
		}

		orders, err := repo.ListByUser(c.Request.Context(), uid, limit, offset)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if orders == nil {
			orders = []order.Order{}
		}
		c.JSON(http.StatusOK, OrderListResponse{Success: true, Orders: orders, Limit: limit, Offset: offset})
	}
}

// transitionHandler godoc
// @Summary      Cancel, ship or complete an order
// @Tags         orders
// @Produce      json
// @Param        X-User-ID  header  string  false  "caller, required to cancel"
// @Param        number     path    string  true   "order number"
// @Success      200  {object}  OrderResponse
// @Failure      404  {object}  httpx.ErrorResponse
// @Failure      409  {object}  httpx.ErrorResponse
// @Router       /orders/{number}/cancel [post]
// @Router       /orders/{number}/ship [post]
// @Router       /orders/{number}/complete [post]
func transitionHandler(repo orderStore, ev order.Event, ownerOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		number := c.Param("number")
		if ownerOnly {
			if _, _, err := ownedOrder(c, repo); err != nil {
				httpx.WriteError(c, err)
				return
			}
		}
		o, ch, err := repo.Transition(c.Request.Context(), number, order.Transition{Event: ev, At: nowUTC()})
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		applied := ch.Applied
		slog.InfoContext(c.Request.Context(), "order transition",
			"order_number", number, "event", ev, "from", ch.From, "to", ch.To, "applied", applied)
		c.JSON(http.StatusOK, OrderResponse{Success: true, Message: o.Status.Label(), Order: o, Applied: &applied})
	}
}

// trackingHandler godoc
// @Summary      Carrier route information for an order
// @Tags         orders
// @Produce      json
// @Param        X-User-ID  header  string  true  "caller"
// @Param        number     path    string  true  "order number"
// @Success      200  {object}  object
// @Failure      502  {object}  httpx.ErrorResponse
// @Router       /orders/{number}/tracking [get]
func trackingHandler(repo orderStore, carrier tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, _, err := ownedOrder(c, repo)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if o.Status != order.StatusShipped && o.Status != order.StatusCompleted {
			httpx.WriteError(c, fmt.Errorf("%w: order %s has not shipped yet", apperr.ErrConflict, o.Number))
			return
		}
		if carrier == nil {
			httpx.WriteError(c, fmt.Errorf("%w: carrier tracking is not configured", apperr.ErrGateway))
			return
		}
		body, err := carrier.QueryRoute(c.Request.Context(), o.Number)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

func healthHandler(ping func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				c.String(http.StatusServiceUnavailable, "db unavailable")
				return
			}
		}
		c.String(http.StatusOK, "ok")
	}
}
