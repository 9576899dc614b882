package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bidhub/bidhub/internal/clock"
	"github.com/bidhub/bidhub/internal/store"
)

// AuctionRepo implements store.AuctionRepository with sqlx.
type AuctionRepo struct {
	db  *sqlx.DB
	clk clock.Clock
}

// NewAuctionRepo returns a new AuctionRepo.
func NewAuctionRepo(db *sqlx.DB, clk clock.Clock) *AuctionRepo {
	return &AuctionRepo{db: db, clk: clk}
}

func (r *AuctionRepo) Create(ctx context.Context, a *store.Auction) error {
	if a.Status == "" {
		a.Status = store.StatusActive
	}
	if a.CurrentPrice.IsZero() {
		a.CurrentPrice = a.StartingPrice
	}
	a.CreatedAt = r.clk.Now().UTC()

	query := `INSERT INTO auctions
	            (title, description, image_url, starting_price, current_price,
	             category_id, seller_id, start_time, end_time, status, featured, bid_count, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12)
	          RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		a.Title, a.Description, a.ImageURL, a.StartingPrice, a.CurrentPrice,
		a.CategoryID, a.SellerID, a.StartTime, a.EndTime, a.Status, a.Featured, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("creating auction: %w", err)
	}
	return nil
}

func (r *AuctionRepo) GetByID(ctx context.Context, id int64) (*store.Auction, error) {
	var a store.Auction
	err := r.db.GetContext(ctx, &a, `SELECT * FROM auctions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting auction: %w", err)
	}
	return &a, nil
}

func (r *AuctionRepo) List(ctx context.Context) ([]store.Auction, error) {
	var auctions []store.Auction
	err := r.db.SelectContext(ctx, &auctions, `SELECT * FROM auctions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing auctions: %w", err)
	}
	return auctions, nil
}

func (r *AuctionRepo) ListActive(ctx context.Context) ([]store.Auction, error) {
	var auctions []store.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE status = 'active' ORDER BY end_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing active auctions: %w", err)
	}
	return auctions, nil
}

func (r *AuctionRepo) EndExpired(ctx context.Context, cutoff time.Time) ([]int64, error) {
	now := r.clk.Now().UTC()
	rows, err := r.db.QueryContext(ctx,
		`UPDATE auctions SET status = 'ended', updated_at = $1
		 WHERE status = 'active' AND end_time <= $2
		 RETURNING id`,
		now, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("ending expired auctions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning ended auction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *AuctionRepo) Cancel(ctx context.Context, id int64) error {
	now := r.clk.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE auctions SET status = 'cancelled', updated_at = $1
		 WHERE id = $2 AND status IN ('pending', 'active')`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("cancelling auction: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("auction %d not found or already finished: %w", id, store.ErrNotFound)
	}
	return nil
}
