package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/bidhub/bidhub/internal/auction"
	"github.com/bidhub/bidhub/internal/clock"
	"github.com/bidhub/bidhub/internal/config"
	"github.com/bidhub/bidhub/internal/event"
	"github.com/bidhub/bidhub/internal/room"
	"github.com/bidhub/bidhub/internal/store"
	"github.com/bidhub/bidhub/internal/store/memstore"
	"github.com/bidhub/bidhub/internal/ws"
)

type harness struct {
	srv   *httptest.Server
	rooms *room.Registry
	user  *store.User
	a     *store.Auction
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := memstore.New(clock.NewMock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	repos := &store.Repositories{
		Auctions:  mem.Auctions(),
		Bids:      mem.Bids(),
		Users:     mem.Users(),
		Watchlist: mem.Watchlist(),
	}
	user := mem.AddUser("alice", "")

	a := &store.Auction{
		Title:         "Old Map",
		StartingPrice: decimal.NewFromInt(50),
		Status:        store.StatusActive,
		EndTime:       time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	if err := repos.Auctions.Create(context.Background(), a); err != nil {
		t.Fatalf("creating auction: %v", err)
	}

	rooms := room.NewRegistry(logger)
	seq := auction.NewSequencer(repos, rooms, decimal.NewFromInt(10), logger, noop.NewTracerProvider())

	cfg := config.ServerConfig{WriteTimeout: 5 * time.Second, OutboxSize: 16}
	srv := httptest.NewServer(ws.NewHandler(seq, rooms, cfg, logger))
	t.Cleanup(srv.Close)

	return &harness{srv: srv, rooms: rooms, user: user, a: a}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) event.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env event.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("reading envelope: %v", err)
	}
	return env
}

func send(t *testing.T, conn *websocket.Conn, typ event.Type, payload any) {
	t.Helper()
	if err := conn.WriteJSON(event.New(typ, payload)); err != nil {
		t.Fatalf("writing %s: %v", typ, err)
	}
}

func join(t *testing.T, conn *websocket.Conn, auctionID int64) {
	t.Helper()
	send(t, conn, event.TypeAuctionUpdate, event.JoinRequest{AuctionID: auctionID})
	if env := readEnvelope(t, conn); env.Type != event.TypeAuctionUpdate {
		t.Fatalf("join ack type = %s, want %s", env.Type, event.TypeAuctionUpdate)
	}
}

func TestConnectSendsWelcome(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	env := readEnvelope(t, conn)
	if env.Type != event.TypeConnection {
		t.Errorf("first envelope type = %s, want %s", env.Type, event.TypeConnection)
	}
}

func TestJoinAck(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	readEnvelope(t, conn) // welcome

	send(t, conn, event.TypeAuctionUpdate, event.JoinRequest{AuctionID: h.a.ID})

	env := readEnvelope(t, conn)
	if env.Type != event.TypeAuctionUpdate {
		t.Fatalf("envelope type = %s, want %s", env.Type, event.TypeAuctionUpdate)
	}
	var ack event.JoinAckPayload
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		t.Fatalf("decoding ack: %v", err)
	}
	if !ack.Joined || ack.AuctionID != h.a.ID {
		t.Errorf("ack = %+v, want joined auction %d", ack, h.a.ID)
	}
}

func TestAcceptedBidReachesRoom(t *testing.T) {
	h := newHarness(t)

	bidder := h.dial(t)
	readEnvelope(t, bidder)
	join(t, bidder, h.a.ID)

	watcher := h.dial(t)
	readEnvelope(t, watcher)
	join(t, watcher, h.a.ID)

	send(t, bidder, event.TypeBid, event.BidRequest{
		AuctionID: h.a.ID,
		UserID:    h.user.ID,
		Amount:    decimal.NewFromInt(55),
	})

	for name, conn := range map[string]*websocket.Conn{"bidder": bidder, "watcher": watcher} {
		env := readEnvelope(t, conn)
		if env.Type != event.TypeBid {
			t.Fatalf("%s envelope type = %s, want %s", name, env.Type, event.TypeBid)
		}
		var p event.BidPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			t.Fatalf("%s: decoding bid payload: %v", name, err)
		}
		if !p.Amount.Equal(decimal.NewFromInt(55)) {
			t.Errorf("%s: amount = %s, want 55", name, p.Amount)
		}
		if !p.CurrentPrice.Equal(decimal.NewFromInt(55)) {
			t.Errorf("%s: currentPrice = %s, want 55", name, p.CurrentPrice)
		}
		if p.User == nil || p.User.Username != "alice" {
			t.Errorf("%s: missing bidder summary, got %+v", name, p.User)
		}
	}
}

func TestRejectionGoesToSenderOnly(t *testing.T) {
	h := newHarness(t)

	bidder := h.dial(t)
	readEnvelope(t, bidder)
	join(t, bidder, h.a.ID)

	watcher := h.dial(t)
	readEnvelope(t, watcher)
	join(t, watcher, h.a.ID)

	// Below starting price.
	send(t, bidder, event.TypeBid, event.BidRequest{
		AuctionID: h.a.ID,
		UserID:    h.user.ID,
		Amount:    decimal.NewFromInt(10),
	})

	env := readEnvelope(t, bidder)
	if env.Type != event.TypeError {
		t.Fatalf("bidder envelope type = %s, want %s", env.Type, event.TypeError)
	}

	// An accepted follow-up proves the watcher skipped the rejection:
	// the next thing it reads is the bid broadcast.
	send(t, bidder, event.TypeBid, event.BidRequest{
		AuctionID: h.a.ID,
		UserID:    h.user.ID,
		Amount:    decimal.NewFromInt(55),
	})
	if env := readEnvelope(t, watcher); env.Type != event.TypeBid {
		t.Errorf("watcher envelope type = %s, want %s", env.Type, event.TypeBid)
	}
}

func TestUnknownTypeAndMalformedJSON(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	readEnvelope(t, conn)

	send(t, conn, event.Type("shout"), map[string]string{"at": "everyone"})
	if env := readEnvelope(t, conn); env.Type != event.TypeError {
		t.Errorf("unknown type reply = %s, want %s", env.Type, event.TypeError)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("writing malformed frame: %v", err)
	}
	if env := readEnvelope(t, conn); env.Type != event.TypeError {
		t.Errorf("malformed frame reply = %s, want %s", env.Type, event.TypeError)
	}
}

func TestDisconnectLeavesRooms(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	readEnvelope(t, conn)
	join(t, conn, h.a.ID)

	if got := h.rooms.Members(h.a.ID); got != 1 {
		t.Fatalf("Members = %d, want 1", got)
	}

	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for h.rooms.Members(h.a.ID) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection was not removed from its room after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
