package auction_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/bidhub/bidhub/internal/auction"
	"github.com/bidhub/bidhub/internal/clock"
	"github.com/bidhub/bidhub/internal/event"
	"github.com/bidhub/bidhub/internal/store"
	"github.com/bidhub/bidhub/internal/store/memstore"
)

func TestSweepOnce(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	mem := memstore.New(clk)
	rooms := &recordingBroadcaster{}
	ctx := context.Background()

	expiring := &store.Auction{
		Title:         "Ends Soon",
		StartingPrice: dec(t, "10"),
		Status:        store.StatusActive,
		EndTime:       clk.Now().Add(time.Minute),
	}
	running := &store.Auction{
		Title:         "Ends Tomorrow",
		StartingPrice: dec(t, "10"),
		Status:        store.StatusActive,
		EndTime:       clk.Now().Add(24 * time.Hour),
	}
	for _, a := range []*store.Auction{expiring, running} {
		if err := mem.Auctions().Create(ctx, a); err != nil {
			t.Fatalf("creating auction: %v", err)
		}
	}

	exp := auction.NewExpirer(mem.Auctions(), rooms, clk, time.Second, testLogger(), noop.NewTracerProvider())

	// Nothing has expired yet.
	if err := exp.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if n := len(rooms.all()); n != 0 {
		t.Fatalf("got %d broadcasts before expiry, want 0", n)
	}

	clk.Advance(2 * time.Minute)
	if err := exp.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}

	events := rooms.all()
	if len(events) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(events))
	}
	if events[0].auctionID != expiring.ID || events[0].env.Type != event.TypeAuctionEnded {
		t.Errorf("broadcast = (%d, %s), want (%d, %s)",
			events[0].auctionID, events[0].env.Type, expiring.ID, event.TypeAuctionEnded)
	}

	got, err := mem.Auctions().GetByID(ctx, expiring.ID)
	if err != nil {
		t.Fatalf("reading auction back: %v", err)
	}
	if got.Status != store.StatusEnded {
		t.Errorf("Status = %s, want %s", got.Status, store.StatusEnded)
	}

	still, err := mem.Auctions().GetByID(ctx, running.ID)
	if err != nil {
		t.Fatalf("reading auction back: %v", err)
	}
	if still.Status != store.StatusActive {
		t.Errorf("unexpired auction Status = %s, want %s", still.Status, store.StatusActive)
	}

	// A repeated sweep must not announce the same auction twice.
	if err := exp.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if n := len(rooms.all()); n != 1 {
		t.Errorf("got %d broadcasts after repeat sweep, want 1", n)
	}
}
