package auction

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errors returned by bid submission. The first three are terminal for the
// submitted bid; ErrStoreUnavailable is transient and the caller may retry.
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrBidTooLow        = errors.New("bid is below minimum")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// BidTooLowError rejects a bid and carries the minimum acceptable amount
// so the client can retry with a corrected bid. It matches ErrBidTooLow
// under errors.Is.
type BidTooLowError struct {
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be at least %s", e.Minimum)
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}
