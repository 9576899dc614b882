// Package room tracks which realtime connections are subscribed to which
// auction and fans events out to them.
package room

import (
	"log/slog"
	"sync"

	"github.com/bidhub/bidhub/internal/event"
)

// Conn is a realtime connection as seen by the registry.
type Conn interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() string
	// Send enqueues env for delivery without blocking. It reports false
	// when the connection cannot keep up with the event stream.
	Send(env event.Envelope) bool
	// Close tears the connection down. Safe to call more than once.
	Close()
}

// Registry is the in-memory map from auction id to subscribed
// connections. Rooms are created on first join and pruned when the last
// member leaves, so the registry's footprint tracks live interest only.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[int64]map[string]Conn
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[int64]map[string]Conn),
		logger: logger,
	}
}

// Join subscribes c to auctionID's room. Joining a room the connection is
// already in is a no-op, so clients may re-request freely.
func (r *Registry) Join(auctionID int64, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[auctionID]
	if members == nil {
		members = make(map[string]Conn)
		r.rooms[auctionID] = members
	}
	members[c.ID()] = c
}

// Leave unsubscribes the connection from auctionID's room. Leaving a room
// it never joined is a no-op.
func (r *Registry) Leave(auctionID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(auctionID, connID)
}

// LeaveAll unsubscribes the connection from every room it is in. Called
// when a connection closes.
func (r *Registry) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for auctionID := range r.rooms {
		r.remove(auctionID, connID)
	}
}

// remove deletes the membership and prunes the room when it empties.
// Caller holds r.mu.
func (r *Registry) remove(auctionID int64, connID string) {
	members, ok := r.rooms[auctionID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, auctionID)
	}
}

// Broadcast delivers env to every member of auctionID's room. Delivery is
// best-effort: a member whose outbox is full is dropped from all rooms and
// closed rather than allowed to stall the rest of the room.
func (r *Registry) Broadcast(auctionID int64, env event.Envelope) {
	r.mu.RLock()
	var slow []Conn
	for _, c := range r.rooms[auctionID] {
		if !c.Send(env) {
			slow = append(slow, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range slow {
		r.logger.Warn("dropping slow connection",
			slog.String("conn_id", c.ID()),
			slog.Int64("auction_id", auctionID),
		)
		r.LeaveAll(c.ID())
		c.Close()
	}
}

// Members reports the size of auctionID's room.
func (r *Registry) Members(auctionID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[auctionID])
}

// Rooms reports the number of live rooms.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
