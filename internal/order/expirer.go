package order

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
)

const expireBatch = 100

// Expirer cancels orders that stayed in pending_payment longer than the
// payment window. A payment that lands first wins: the conditional update in
// Transition turns the cancel into an illegal transition, which is skipped.
type Expirer struct {
	repo     Repository
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewExpirer(repo Repository, ttl, interval time.Duration) *Expirer {
	return &Expirer{repo: repo, ttl: ttl, interval: interval, now: time.Now}
}

// Run sweeps every interval until ctx is done.
func (e *Expirer) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "order expirer started", "ttl", e.ttl, "interval", e.interval)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "order expirer stopped")
			return
		case <-ticker.C:
			if _, err := e.Sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "order expiry sweep failed", "error", err)
			}
		}
	}
}

// Sweep cancels one batch of expired orders and returns how many changed.
func (e *Expirer) Sweep(ctx context.Context) (int, error) {
	now := e.now().UTC()
	pending, err := e.repo.ListPendingBefore(ctx, now.Add(-e.ttl), expireBatch)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, o := range pending {
		jobCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, ch, err := e.repo.Transition(jobCtx, o.Number, Transition{Event: EventCancel, At: now})
		cancel()

		switch {
		case errors.Is(err, apperr.ErrIllegalTransition):
			slog.InfoContext(ctx, "order left pending before expiry", "order_number", o.Number)
		case err != nil:
			slog.WarnContext(ctx, "expire order failed", "order_number", o.Number, "error", err)
		case ch.Applied:
			cancelled++
			slog.InfoContext(ctx, "order expired", "order_number", o.Number, "created_at", o.CreatedAt)
		}
	}
	return cancelled, nil
}
