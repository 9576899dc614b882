package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bidhub/bidhub/internal/clock"
	"github.com/bidhub/bidhub/internal/store"
)

// BidRepo implements store.BidRepository with sqlx.
type BidRepo struct {
	db  *sqlx.DB
	clk clock.Clock
}

// NewBidRepo returns a new BidRepo.
func NewBidRepo(db *sqlx.DB, clk clock.Clock) *BidRepo {
	return &BidRepo{db: db, clk: clk}
}

// Create inserts the bid and bumps the auction's current price and bid
// count in a single transaction, so the two writes are all-or-nothing.
func (r *BidRepo) Create(ctx context.Context, b *store.Bid) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b.CreatedAt = r.clk.Now().UTC()
	err = tx.QueryRowContext(ctx,
		`INSERT INTO bids (auction_id, user_id, amount, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		b.AuctionID, b.UserID, b.Amount, b.CreatedAt,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("inserting bid (auction=%d): %w", b.AuctionID, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE auctions
		 SET current_price = $1, bid_count = bid_count + 1, updated_at = $2
		 WHERE id = $3 AND status = 'active'`,
		b.Amount, b.CreatedAt, b.AuctionID,
	)
	if err != nil {
		return fmt.Errorf("updating auction price (auction=%d): %w", b.AuctionID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("auction %d not active: %w", b.AuctionID, store.ErrNotFound)
	}

	return tx.Commit()
}

func (r *BidRepo) GetHighest(ctx context.Context, auctionID int64) (*store.Bid, error) {
	var b store.Bid
	err := r.db.GetContext(ctx, &b,
		`SELECT * FROM bids WHERE auction_id = $1 ORDER BY amount DESC LIMIT 1`, auctionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting highest bid: %w", err)
	}
	return &b, nil
}

func (r *BidRepo) ListForAuction(ctx context.Context, auctionID int64) ([]store.Bid, error) {
	var bids []store.Bid
	err := r.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE auction_id = $1 ORDER BY amount DESC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	return bids, nil
}
