package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Auction status values. Ended and cancelled are terminal: no transition
// may reopen an auction once it reaches either.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusEnded     = "ended"
	StatusCancelled = "cancelled"
)

// Auction is an auction listing. CurrentPrice and BidCount are mutated
// exclusively through BidRepository.Create while the auction is active.
type Auction struct {
	ID            int64           `db:"id" json:"id"`
	Title         string          `db:"title" json:"title"`
	Description   string          `db:"description" json:"description"`
	ImageURL      string          `db:"image_url" json:"imageUrl"`
	StartingPrice decimal.Decimal `db:"starting_price" json:"startingPrice"`
	CurrentPrice  decimal.Decimal `db:"current_price" json:"currentPrice"`
	CategoryID    int64           `db:"category_id" json:"categoryId"`
	SellerID      int64           `db:"seller_id" json:"sellerId"`
	StartTime     time.Time       `db:"start_time" json:"startTime"`
	EndTime       time.Time       `db:"end_time" json:"endTime"`
	Status        string          `db:"status" json:"status"`
	Featured      bool            `db:"featured" json:"featured"`
	BidCount      int             `db:"bid_count" json:"bidCount"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     *time.Time      `db:"updated_at" json:"updatedAt,omitempty"`
}

// Bid is a single accepted bid. Bids are immutable once created.
type Bid struct {
	ID        int64           `db:"id" json:"id"`
	AuctionID int64           `db:"auction_id" json:"auctionId"`
	UserID    int64           `db:"user_id" json:"userId"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// User carries the subset of account data the bidding core reads.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Avatar   string `db:"avatar" json:"avatar"`
}

// WatchlistEntry marks a user as watching an auction. The (UserID,
// AuctionID) pair is unique.
type WatchlistEntry struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"userId"`
	AuctionID int64     `db:"auction_id" json:"auctionId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// AuctionRepository defines auction persistence operations.
type AuctionRepository interface {
	Create(ctx context.Context, a *Auction) error
	GetByID(ctx context.Context, id int64) (*Auction, error)
	List(ctx context.Context) ([]Auction, error)
	ListActive(ctx context.Context) ([]Auction, error)
	// EndExpired marks active auctions whose end time is at or before
	// cutoff as ended and returns their ids.
	EndExpired(ctx context.Context, cutoff time.Time) ([]int64, error)
	Cancel(ctx context.Context, id int64) error
}

// BidRepository defines bid persistence operations.
type BidRepository interface {
	// Create persists the bid and applies the owning auction's
	// current_price / bid_count update as one transaction. On return
	// the bid's ID and CreatedAt are set. Either both writes are
	// visible or neither is.
	Create(ctx context.Context, b *Bid) error
	// GetHighest returns the highest-amount bid for an auction, or
	// (nil, nil) when the auction has no bids.
	GetHighest(ctx context.Context, auctionID int64) (*Bid, error)
	// ListForAuction returns all bids for an auction, highest first.
	ListForAuction(ctx context.Context, auctionID int64) ([]Bid, error)
}

// UserRepository defines the user lookups the core needs.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
}

// WatchlistRepository defines watchlist persistence operations.
type WatchlistRepository interface {
	Add(ctx context.Context, userID, auctionID int64) (*WatchlistEntry, error)
	Remove(ctx context.Context, userID, auctionID int64) error
	ListForUser(ctx context.Context, userID int64) ([]WatchlistEntry, error)
}
