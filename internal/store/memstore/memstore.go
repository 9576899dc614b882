// Package memstore implements the store repositories in memory. It backs
// the "memory" driver used in development and in unit tests, and applies
// the same all-or-nothing bid commit semantics as the Postgres driver.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bidhub/bidhub/internal/clock"
	"github.com/bidhub/bidhub/internal/config"
	"github.com/bidhub/bidhub/internal/store"
)

func init() {
	store.Register("memory", open)
}

func open(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	s := New(clk)
	return &store.Repositories{
		Auctions:  s.Auctions(),
		Bids:      s.Bids(),
		Users:     s.Users(),
		Watchlist: s.Watchlist(),
		Closer:    closerFunc(func() error { return nil }),
		Ping:      func(context.Context) error { return nil },
	}, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Store holds all in-memory tables behind one mutex.
type Store struct {
	mu  sync.RWMutex
	clk clock.Clock

	auctions  map[int64]*store.Auction
	bids      map[int64]*store.Bid
	users     map[int64]*store.User
	watchlist map[int64]*store.WatchlistEntry

	nextAuctionID   int64
	nextBidID       int64
	nextUserID      int64
	nextWatchlistID int64
}

// New returns an empty Store.
func New(clk clock.Clock) *Store {
	return &Store{
		clk:       clk,
		auctions:  make(map[int64]*store.Auction),
		bids:      make(map[int64]*store.Bid),
		users:     make(map[int64]*store.User),
		watchlist: make(map[int64]*store.WatchlistEntry),
	}
}

// Auctions returns the auction repository view of the store.
func (s *Store) Auctions() store.AuctionRepository { return (*auctionRepo)(s) }

// Bids returns the bid repository view of the store.
func (s *Store) Bids() store.BidRepository { return (*bidRepo)(s) }

// Users returns the user repository view of the store.
func (s *Store) Users() store.UserRepository { return (*userRepo)(s) }

// Watchlist returns the watchlist repository view of the store.
func (s *Store) Watchlist() store.WatchlistRepository { return (*watchlistRepo)(s) }

// AddUser seeds a user and returns it. Intended for tests and dev setups.
func (s *Store) AddUser(username, avatar string) *store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u := &store.User{ID: s.nextUserID, Username: username, Avatar: avatar}
	s.users[u.ID] = u
	return u
}

// --- auctions ---

type auctionRepo Store

func (r *auctionRepo) Create(_ context.Context, a *store.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextAuctionID++
	a.ID = r.nextAuctionID
	if a.Status == "" {
		a.Status = store.StatusActive
	}
	if a.CurrentPrice.IsZero() {
		a.CurrentPrice = a.StartingPrice
	}
	a.CreatedAt = r.clk.Now().UTC()

	cp := *a
	r.auctions[a.ID] = &cp
	return nil
}

func (r *auctionRepo) GetByID(_ context.Context, id int64) (*store.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *auctionRepo) List(_ context.Context) ([]store.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]store.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *auctionRepo) ListActive(_ context.Context) ([]store.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []store.Auction
	for _, a := range r.auctions {
		if a.Status == store.StatusActive {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (r *auctionRepo) EndExpired(_ context.Context, cutoff time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now().UTC()
	var ids []int64
	for _, a := range r.auctions {
		if a.Status == store.StatusActive && !a.EndTime.After(cutoff) {
			a.Status = store.StatusEnded
			a.UpdatedAt = &now
			ids = append(ids, a.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *auctionRepo) Cancel(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[id]
	if !ok || (a.Status != store.StatusPending && a.Status != store.StatusActive) {
		return fmt.Errorf("auction %d not found or already finished: %w", id, store.ErrNotFound)
	}
	now := r.clk.Now().UTC()
	a.Status = store.StatusCancelled
	a.UpdatedAt = &now
	return nil
}

// --- bids ---

type bidRepo Store

func (r *bidRepo) Create(_ context.Context, b *store.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[b.AuctionID]
	if !ok || a.Status != store.StatusActive {
		return fmt.Errorf("auction %d not active: %w", b.AuctionID, store.ErrNotFound)
	}

	r.nextBidID++
	b.ID = r.nextBidID
	b.CreatedAt = r.clk.Now().UTC()

	cp := *b
	r.bids[b.ID] = &cp

	now := b.CreatedAt
	a.CurrentPrice = b.Amount
	a.BidCount++
	a.UpdatedAt = &now
	return nil
}

func (r *bidRepo) GetHighest(_ context.Context, auctionID int64) (*store.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var highest *store.Bid
	for _, b := range r.bids {
		if b.AuctionID != auctionID {
			continue
		}
		if highest == nil || b.Amount.GreaterThan(highest.Amount) {
			highest = b
		}
	}
	if highest == nil {
		return nil, nil
	}
	cp := *highest
	return &cp, nil
}

func (r *bidRepo) ListForAuction(_ context.Context, auctionID int64) ([]store.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []store.Bid
	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	return out, nil
}

// --- users ---

type userRepo Store

func (r *userRepo) GetByID(_ context.Context, id int64) (*store.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// --- watchlist ---

type watchlistRepo Store

func (r *watchlistRepo) Add(_ context.Context, userID, auctionID int64) (*store.WatchlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.watchlist {
		if e.UserID == userID && e.AuctionID == auctionID {
			cp := *e
			return &cp, nil
		}
	}

	r.nextWatchlistID++
	e := &store.WatchlistEntry{
		ID:        r.nextWatchlistID,
		UserID:    userID,
		AuctionID: auctionID,
		CreatedAt: r.clk.Now().UTC(),
	}
	r.watchlist[e.ID] = e
	cp := *e
	return &cp, nil
}

func (r *watchlistRepo) Remove(_ context.Context, userID, auctionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.watchlist {
		if e.UserID == userID && e.AuctionID == auctionID {
			delete(r.watchlist, id)
			return nil
		}
	}
	return nil
}

func (r *watchlistRepo) ListForUser(_ context.Context, userID int64) ([]store.WatchlistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []store.WatchlistEntry
	for _, e := range r.watchlist {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
