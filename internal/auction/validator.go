package auction

import (
	"github.com/shopspring/decimal"

	"github.com/bidhub/bidhub/internal/store"
)

// MinimumBid returns the smallest acceptable amount for the next bid on a:
// the highest existing bid plus the increment, or the starting price when
// no bid has been placed yet.
func MinimumBid(a *store.Auction, highest *store.Bid, increment decimal.Decimal) decimal.Decimal {
	if highest == nil {
		return a.StartingPrice
	}
	return highest.Amount.Add(increment)
}

// Validate decides whether a proposed bid is acceptable against the given
// auction state. It is pure and safe to call concurrently, but must be
// evaluated against a fresh read taken inside the sequencer's critical
// section, never against cached state.
func Validate(a *store.Auction, amount decimal.Decimal, highest *store.Bid, increment decimal.Decimal) error {
	if a == nil {
		return ErrAuctionNotFound
	}
	if a.Status != store.StatusActive {
		return ErrAuctionNotActive
	}
	if minimum := MinimumBid(a, highest, increment); amount.LessThan(minimum) {
		return &BidTooLowError{Minimum: minimum}
	}
	return nil
}
