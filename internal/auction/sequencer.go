package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bidhub/bidhub/internal/event"
	"github.com/bidhub/bidhub/internal/store"
	"github.com/bidhub/bidhub/internal/telemetry"
)

// Broadcaster delivers an event to every connection in an auction's room.
// Delivery is best-effort and must never block the caller.
type Broadcaster interface {
	Broadcast(auctionID int64, env event.Envelope)
}

// Sequencer turns concurrent bid submissions into a strictly ordered,
// atomic sequence of accept-or-reject decisions per auction. It is the
// sole writer of an auction's current price and bid count.
type Sequencer struct {
	locks *lockTable

	auctions  store.AuctionRepository
	bids      store.BidRepository
	users     store.UserRepository
	rooms     Broadcaster
	increment decimal.Decimal

	logger *slog.Logger
	tracer trace.Tracer
}

// NewSequencer creates a Sequencer using the given repositories and room
// broadcaster. increment is the service-wide minimum raise.
func NewSequencer(repos *store.Repositories, rooms Broadcaster, increment decimal.Decimal, logger *slog.Logger, tp trace.TracerProvider) *Sequencer {
	return &Sequencer{
		locks:     newLockTable(),
		auctions:  repos.Auctions,
		bids:      repos.Bids,
		users:     repos.Users,
		rooms:     rooms,
		increment: increment,
		logger:    logger,
		tracer:    tp.Tracer("github.com/bidhub/bidhub/internal/auction"),
	}
}

// SubmitBid validates and commits a bid for auctionID. Submissions for the
// same auction are serialized in arrival order; submissions for different
// auctions run concurrently. On acceptance the committed bid is broadcast
// to the auction's room before the critical section is released, so fan-out
// preserves commit order. Rejections are returned to the caller only.
//
// A store call that stalls keeps this auction's critical section held;
// other auctions are unaffected.
func (s *Sequencer) SubmitBid(ctx context.Context, auctionID, userID int64, amount decimal.Decimal) (*store.Bid, error) {
	ctx, span := s.tracer.Start(ctx, "Sequencer.SubmitBid",
		trace.WithAttributes(
			attribute.Int64("auction.id", auctionID),
			attribute.Int64("user.id", userID),
			attribute.String("bid.amount", amount.String()),
		),
	)
	defer span.End()

	entry := s.locks.acquire(auctionID)
	defer s.locks.release(auctionID, entry)

	// Fresh reads inside the critical section; validating against state
	// read before the lock would race with the previous commit.
	a, err := s.auctions.GetByID(ctx, auctionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading auction: %w", ErrStoreUnavailable, err)
	}

	highest, err := s.bids.GetHighest(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading highest bid: %w", ErrStoreUnavailable, err)
	}

	if err := Validate(a, amount, highest, s.increment); err != nil {
		return nil, err
	}

	b := &store.Bid{AuctionID: auctionID, UserID: userID, Amount: amount}
	if err := s.bids.Create(ctx, b); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Auction left the active state between read and write.
			return nil, ErrAuctionNotActive
		}
		return nil, fmt.Errorf("%w: persisting bid: %w", ErrStoreUnavailable, err)
	}

	// Bidder summary is decorative; a lookup failure does not undo the
	// committed bid.
	bidder, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "bidder lookup failed for broadcast",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		bidder = nil
	}

	s.rooms.Broadcast(auctionID, event.NewBidEvent(b, b.Amount, bidder))

	telemetry.LogWithTrace(ctx, s.logger).InfoContext(ctx, "bid accepted",
		slog.Int64("auction_id", auctionID),
		slog.Int64("user_id", userID),
		slog.String("amount", amount.String()),
		slog.Int64("bid_id", b.ID),
	)
	return b, nil
}

// Increment returns the configured minimum raise.
func (s *Sequencer) Increment() decimal.Decimal { return s.increment }
