package auction

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/bidhub/bidhub/internal/clock"
	"github.com/bidhub/bidhub/internal/event"
	"github.com/bidhub/bidhub/internal/store"
)

// Expirer drives the time-based active→ended transition and announces it
// to each affected auction's room. It never reopens ended or cancelled
// auctions.
type Expirer struct {
	auctions store.AuctionRepository
	rooms    Broadcaster
	clk      clock.Clock
	interval time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewExpirer creates an Expirer sweeping at the given interval.
func NewExpirer(auctions store.AuctionRepository, rooms Broadcaster, clk clock.Clock, interval time.Duration, logger *slog.Logger, tp trace.TracerProvider) *Expirer {
	return &Expirer{
		auctions: auctions,
		rooms:    rooms,
		clk:      clk,
		interval: interval,
		logger:   logger,
		tracer:   tp.Tracer("github.com/bidhub/bidhub/internal/auction"),
	}
}

// Run sweeps periodically until ctx is cancelled.
func (e *Expirer) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.SweepOnce(ctx); err != nil {
				e.logger.ErrorContext(ctx, "auction expiry sweep failed", slog.Any("error", err))
			}
		}
	}
}

// SweepOnce ends every active auction whose end time has passed and
// broadcasts the transition to each auction's room.
func (e *Expirer) SweepOnce(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "Expirer.SweepOnce")
	defer span.End()

	ids, err := e.auctions.EndExpired(ctx, e.clk.Now().UTC())
	if err != nil {
		return err
	}

	for _, id := range ids {
		e.rooms.Broadcast(id, event.New(event.TypeAuctionEnded, event.AuctionEndedPayload{
			AuctionID: id,
			Status:    store.StatusEnded,
		}))
		e.logger.InfoContext(ctx, "auction ended", slog.Int64("auction_id", id))
	}
	return nil
}
