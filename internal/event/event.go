// Package event defines the message envelope exchanged over the realtime
// transport and the payloads carried by each message type.
package event

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bidhub/bidhub/internal/store"
)

// Type identifies a message kind on the wire.
type Type string

const (
	// TypeConnection is sent once to a client right after connect.
	TypeConnection Type = "connection"
	// TypeBid carries a bid: inbound as a submission, outbound as the
	// accepted bid broadcast to the auction room.
	TypeBid Type = "bid"
	// TypeAuctionUpdate is inbound a room join request and outbound the
	// join acknowledgement.
	TypeAuctionUpdate Type = "auction_update"
	// TypeAuctionEnded tells a room its auction reached its end time.
	TypeAuctionEnded Type = "auction_ended"
	// TypeError reports a rejection or protocol error to one client.
	TypeError Type = "error"
)

// Envelope is the bidirectional wire format: a type tag and a payload.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// New builds an envelope from a payload value. Marshalling the payload
// structs below cannot fail, so errors are folded into an empty payload.
func New(t Type, payload any) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Envelope{Type: t, Payload: data}
}

// BidRequest is the inbound payload of a TypeBid message.
type BidRequest struct {
	AuctionID int64           `json:"auctionId"`
	UserID    int64           `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
}

// JoinRequest is the inbound payload of a TypeAuctionUpdate message.
type JoinRequest struct {
	AuctionID int64 `json:"auctionId"`
}

// ConnectionPayload is the welcome message payload.
type ConnectionPayload struct {
	Message string `json:"message"`
}

// BidderSummary is the denormalized user info attached to a broadcast bid.
type BidderSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// BidPayload is the outbound payload of a TypeBid broadcast: the accepted
// bid plus who placed it and the auction's new current price.
type BidPayload struct {
	ID           int64           `json:"id"`
	AuctionID    int64           `json:"auctionId"`
	UserID       int64           `json:"userId"`
	Amount       decimal.Decimal `json:"amount"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	CreatedAt    time.Time       `json:"createdAt"`
	User         *BidderSummary  `json:"user,omitempty"`
}

// JoinAckPayload confirms a room join to the requesting client.
type JoinAckPayload struct {
	Joined    bool  `json:"joined"`
	AuctionID int64 `json:"auctionId"`
}

// AuctionEndedPayload announces a time-driven auction end to its room.
type AuctionEndedPayload struct {
	AuctionID int64  `json:"auctionId"`
	Status    string `json:"status"`
}

// ErrorPayload carries a rejection or protocol error message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewBidEvent builds the broadcast envelope for an accepted bid.
func NewBidEvent(b *store.Bid, currentPrice decimal.Decimal, bidder *store.User) Envelope {
	p := BidPayload{
		ID:           b.ID,
		AuctionID:    b.AuctionID,
		UserID:       b.UserID,
		Amount:       b.Amount,
		CurrentPrice: currentPrice,
		CreatedAt:    b.CreatedAt,
	}
	if bidder != nil {
		p.User = &BidderSummary{ID: bidder.ID, Username: bidder.Username, Avatar: bidder.Avatar}
	}
	return New(TypeBid, p)
}

// NewError builds an error envelope for a single client.
func NewError(message string) Envelope {
	return New(TypeError, ErrorPayload{Message: message})
}
