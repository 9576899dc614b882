// Package bidclient is the Go client for the bidhub realtime service.
// It speaks the websocket envelope protocol and reconnects with bounded
// exponential backoff when the connection drops.
package bidclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/bidhub/bidhub/internal/event"
)

// State describes the client's connection lifecycle.
type State int

const (
	// StateDisconnected is the initial state and the state after the
	// reconnect budget is exhausted.
	StateDisconnected State = iota
	// StateConnecting means a dial or redial is in flight.
	StateConnecting
	// StateOpen means the connection is established and messages flow.
	StateOpen
	// StateClosed means Close was called; the client will not redial.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrClosed is returned by operations on a client after Close.
var ErrClosed = errors.New("client is closed")

// Options tunes the client. The zero value is usable.
type Options struct {
	// MaxReconnectAttempts bounds redials per disconnect. Zero means 5.
	MaxReconnectAttempts uint64
	// InitialBackoff is the first redial delay. Zero means 500ms.
	InitialBackoff time.Duration
	// MaxBackoff caps the redial delay. Zero means 30s.
	MaxBackoff time.Duration
	// Logger receives connection lifecycle logs. Nil means slog.Default.
	Logger *slog.Logger
}

func (o *Options) fill() {
	if o.MaxReconnectAttempts == 0 {
		o.MaxReconnectAttempts = 5
	}
	if o.InitialBackoff == 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Client is a websocket client for the bidding service. All methods are
// safe for concurrent use. Events, including bid broadcasts for watched
// auctions and rejections of this client's bids, arrive on Events.
type Client struct {
	url  string
	opts Options

	mu      sync.Mutex
	state   State
	sock    *websocket.Conn
	watched map[int64]struct{}

	events chan event.Envelope
	done   chan struct{}
}

// Dial connects to url (a ws:// or wss:// endpoint) and starts the read
// loop. The returned client is Open; it redials on failure until the
// attempt budget runs out.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	opts.fill()
	c := &Client{
		url:     url,
		opts:    opts,
		watched: make(map[int64]struct{}),
		events:  make(chan event.Envelope, 64),
		done:    make(chan struct{}),
	}

	c.setState(StateConnecting)
	sock, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	c.mu.Lock()
	c.sock = sock
	c.state = StateOpen
	c.mu.Unlock()

	go c.readLoop()
	return c, nil
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events is the stream of inbound envelopes. It is closed when the
// client closes or gives up reconnecting.
func (c *Client) Events() <-chan event.Envelope {
	return c.events
}

// PlaceBid submits a bid over the connection. The outcome arrives on
// Events: acceptance as a bid broadcast, rejection as an error envelope.
func (c *Client) PlaceBid(auctionID, userID int64, amount decimal.Decimal) error {
	return c.send(event.New(event.TypeBid, event.BidRequest{
		AuctionID: auctionID,
		UserID:    userID,
		Amount:    amount,
	}))
}

// Watch subscribes the client to an auction's room. Watches are replayed
// after a reconnect, since the server keeps no session state across
// connections.
func (c *Client) Watch(auctionID int64) error {
	c.mu.Lock()
	c.watched[auctionID] = struct{}{}
	c.mu.Unlock()

	return c.send(event.New(event.TypeAuctionUpdate, event.JoinRequest{AuctionID: auctionID}))
}

// Close shuts the client down. It never redials afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()

	close(c.done)
	if sock != nil {
		return sock.Close()
	}
	return nil
}

func (c *Client) send(env event.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateOpen:
	default:
		return fmt.Errorf("connection is %s", c.state)
	}
	return c.sock.WriteJSON(env)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// readLoop pumps inbound envelopes onto the events channel and drives
// the reconnect state machine when the connection drops.
func (c *Client) readLoop() {
	defer close(c.events)

	for {
		c.mu.Lock()
		sock := c.sock
		c.mu.Unlock()
		if sock == nil {
			return
		}

		for {
			var env event.Envelope
			if err := sock.ReadJSON(&env); err != nil {
				break
			}
			select {
			case c.events <- env:
			case <-c.done:
				return
			}
		}

		select {
		case <-c.done:
			return
		default:
		}

		if !c.reconnect() {
			return
		}
	}
}

// reconnect redials with exponential backoff up to the attempt budget.
// It reports whether a new connection is open.
func (c *Client) reconnect() bool {
	c.setState(StateConnecting)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.InitialBackoff
	policy.MaxInterval = c.opts.MaxBackoff
	bo := backoff.WithMaxRetries(policy, c.opts.MaxReconnectAttempts)

	var sock *websocket.Conn
	op := func() error {
		select {
		case <-c.done:
			return backoff.Permanent(ErrClosed)
		default:
		}
		var err error
		sock, _, err = websocket.DefaultDialer.Dial(c.url, nil)
		return err
	}
	if err := backoff.Retry(op, bo); err != nil {
		c.opts.Logger.Warn("reconnect failed, giving up", slog.Any("error", err))
		c.mu.Lock()
		if c.state != StateClosed {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return false
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		_ = sock.Close()
		return false
	}
	c.sock = sock
	c.state = StateOpen
	watched := make([]int64, 0, len(c.watched))
	for id := range c.watched {
		watched = append(watched, id)
	}
	c.mu.Unlock()

	c.opts.Logger.Info("reconnected", slog.String("url", c.url))

	// Rejoin watched rooms; the server forgot them with the old session.
	for _, id := range watched {
		_ = c.send(event.New(event.TypeAuctionUpdate, event.JoinRequest{AuctionID: id}))
	}
	return true
}
