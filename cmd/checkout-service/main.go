// Command checkout-service serves checkout, payment callbacks, refunds and
// order lifecycle endpoints.
//
// @title        Checkout service API
// @version      1.0
// @description  Cart to order checkout, payment gateway callbacks and refunds.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/MikeMC777/ordenes-checkout/internal/carrier"
	"github.com/MikeMC777/ordenes-checkout/internal/checkout"
	"github.com/MikeMC777/ordenes-checkout/internal/config"
	"github.com/MikeMC777/ordenes-checkout/internal/db"
	"github.com/MikeMC777/ordenes-checkout/internal/httpx"
	"github.com/MikeMC777/ordenes-checkout/internal/lock"
	"github.com/MikeMC777/ordenes-checkout/internal/order"
	"github.com/MikeMC777/ordenes-checkout/internal/payment"
	"github.com/MikeMC777/ordenes-checkout/internal/reconcile"
	"github.com/MikeMC777/ordenes-checkout/internal/refund"
)

type locker interface {
	Acquire(ctx context.Context, name string) (lock.Release, error)
}

func main() {
	cfg := config.Load()
	httpx.InitLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres")

	var locks locker = lock.NewLocal()
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		locks = lock.NewRedis(rdb)
		slog.Info("connected to redis", "addr", cfg.RedisAddr)
	} else {
		slog.Warn("REDIS_ADDR not set, order locks are local to this instance")
	}

	gateway, err := payment.NewClient(cfg.Payment)
	if err != nil {
		slog.Error("failed to configure payment gateway", "error", err)
		os.Exit(1)
	}

	orders := order.NewPGRepo(pool)
	d := deps{
		checkout: checkout.NewService(checkout.NewPGStore(pool)),
		gateway:  gateway,
		notify:   reconcile.NewHandler(orders, gateway, locks, gateway.AppID()),
		refunds:  refund.NewService(orders, refund.NewInitiator(gateway), locks),
		orders:   orders,
		ping:     pool.Ping,
	}
	if sf := carrier.NewClient(cfg.Carrier); sf.Configured() {
		d.carrier = sf
	} else {
		slog.Warn("carrier credentials not set, tracking disabled")
	}

	// Expire unpaid orders
	var wg sync.WaitGroup
	expirer := order.NewExpirer(orders, cfg.PaymentTTL, cfg.ExpireEvery)
	wg.Add(1)
	go func() {
		defer wg.Done()
		expirer.Run(ctx)
	}()

	// gRPC health
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("gRPC health server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC server error", "error", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(d),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("checkout-service listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down...")

	healthSrv.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "error", err)
	}
	slog.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	slog.Info("gRPC server stopped")

	cancel()
	wg.Wait()
	slog.Info("expirer stopped")

	if rdb != nil {
		_ = rdb.Close()
	}
	slog.Info("connections closed")
}
