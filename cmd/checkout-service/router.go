package main

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MikeMC777/ordenes-checkout/docs"
	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
	"github.com/MikeMC777/ordenes-checkout/internal/httpx"
	"github.com/MikeMC777/ordenes-checkout/internal/order"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var nowUTC = func() time.Time { return time.Now().UTC() }

type deps struct {
	checkout orderCreator
	gateway  paymentGateway
	notify   notificationHandler
	refunds  refunder
	orders   orderStore
	carrier  tracker // nil when no carrier credentials are configured
	ping     func(context.Context) error
}

func newRouter(d deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger())
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.tmpl")))

	r.GET("/healthz", healthHandler(d.ping))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.POST("/checkout", createCheckoutHandler(d.checkout, d.gateway))

	r.POST("/payments/notify", paymentNotifyHandler(d.notify))
	r.GET("/payments/return", paymentReturnHandler(d.gateway))

	r.GET("/orders/user/:user_id", listOrdersByUserHandler(d.orders))
	r.GET("/orders/:number", getOrderHandler(d.orders))
	r.GET("/orders/:number/tracking", trackingHandler(d.orders, d.carrier))
	r.POST("/orders/:number/refund", refundOrderHandler(d.refunds))
	r.POST("/orders/:number/cancel", transitionHandler(d.orders, order.EventCancel, true))
	r.POST("/orders/:number/ship", transitionHandler(d.orders, order.EventShip, false))
	r.POST("/orders/:number/complete", transitionHandler(d.orders, order.EventComplete, false))

	r.NoRoute(func(c *gin.Context) {
		httpx.WriteError(c, fmt.Errorf("%w: %s %s", apperr.ErrNotFound, c.Request.Method, c.Request.URL.Path))
	})
	return r
}
