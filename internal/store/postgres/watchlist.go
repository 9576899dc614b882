package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bidhub/bidhub/internal/clock"
	"github.com/bidhub/bidhub/internal/store"
)

// WatchlistRepo implements store.WatchlistRepository with sqlx.
type WatchlistRepo struct {
	db  *sqlx.DB
	clk clock.Clock
}

// NewWatchlistRepo returns a new WatchlistRepo.
func NewWatchlistRepo(db *sqlx.DB, clk clock.Clock) *WatchlistRepo {
	return &WatchlistRepo{db: db, clk: clk}
}

// Add inserts a watchlist entry. Adding the same (user, auction) pair
// twice returns the existing entry unchanged.
func (r *WatchlistRepo) Add(ctx context.Context, userID, auctionID int64) (*store.WatchlistEntry, error) {
	e := &store.WatchlistEntry{
		UserID:    userID,
		AuctionID: auctionID,
		CreatedAt: r.clk.Now().UTC(),
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO watchlist (user_id, auction_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, auction_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id, created_at`,
		userID, auctionID, e.CreatedAt,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("adding watchlist entry: %w", err)
	}
	return e, nil
}

func (r *WatchlistRepo) Remove(ctx context.Context, userID, auctionID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = $1 AND auction_id = $2`, userID, auctionID)
	if err != nil {
		return fmt.Errorf("removing watchlist entry: %w", err)
	}
	return nil
}

func (r *WatchlistRepo) ListForUser(ctx context.Context, userID int64) ([]store.WatchlistEntry, error) {
	var entries []store.WatchlistEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT * FROM watchlist WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing watchlist: %w", err)
	}
	return entries, nil
}
