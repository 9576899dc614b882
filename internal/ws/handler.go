// Package ws implements the realtime websocket transport: connection
// lifecycle, the envelope protocol, and dispatch into the bidding engine.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bidhub/bidhub/internal/auction"
	"github.com/bidhub/bidhub/internal/config"
	"github.com/bidhub/bidhub/internal/event"
	"github.com/bidhub/bidhub/internal/room"
)

// Handler upgrades HTTP requests to websocket connections and runs the
// envelope protocol over them.
type Handler struct {
	seq      *auction.Sequencer
	rooms    *room.Registry
	upgrader websocket.Upgrader
	cfg      config.ServerConfig
	logger   *slog.Logger
}

// NewHandler creates a websocket Handler.
func NewHandler(seq *auction.Sequencer, rooms *room.Registry, cfg config.ServerConfig, logger *slog.Logger) *Handler {
	return &Handler{
		seq:   seq,
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		cfg:    cfg,
		logger: logger,
	}
}

// ServeHTTP upgrades the request and serves the connection until it
// closes. Each connection gets a reader loop (this goroutine) and one
// writer goroutine draining its outbox.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := newConnection(uuid.NewString(), sock, h.cfg.OutboxSize, h.cfg.WriteTimeout)
	go c.writePump()

	h.logger.Info("websocket connected", slog.String("conn_id", c.ID()))
	c.Send(event.New(event.TypeConnection, event.ConnectionPayload{
		Message: "connected to bidhub realtime service",
	}))

	h.readLoop(r.Context(), c)

	h.rooms.LeaveAll(c.ID())
	c.Close()
	h.logger.Info("websocket disconnected", slog.String("conn_id", c.ID()))
}

func (h *Handler) readLoop(ctx context.Context, c *connection) {
	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed",
					slog.String("conn_id", c.ID()),
					slog.Any("error", err),
				)
			}
			return
		}

		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.Send(event.NewError("malformed message"))
			continue
		}

		switch env.Type {
		case event.TypeBid:
			h.handleBid(ctx, c, env.Payload)
		case event.TypeAuctionUpdate:
			h.handleJoin(c, env.Payload)
		default:
			h.logger.Warn("unknown message type",
				slog.String("conn_id", c.ID()),
				slog.String("type", string(env.Type)),
			)
			c.Send(event.NewError(fmt.Sprintf("unknown message type %q", env.Type)))
		}
	}
}

// handleBid submits the bid. Acceptance reaches the whole room through
// the registry broadcast; only rejections are answered here.
func (h *Handler) handleBid(ctx context.Context, c *connection, payload json.RawMessage) {
	var req event.BidRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.Send(event.NewError("malformed bid payload"))
		return
	}

	if _, err := h.seq.SubmitBid(ctx, req.AuctionID, req.UserID, req.Amount); err != nil {
		c.Send(rejectionEnvelope(err))
	}
}

func (h *Handler) handleJoin(c *connection, payload json.RawMessage) {
	var req event.JoinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.Send(event.NewError("malformed join payload"))
		return
	}

	h.rooms.Join(req.AuctionID, c)
	c.Send(event.New(event.TypeAuctionUpdate, event.JoinAckPayload{
		Joined:    true,
		AuctionID: req.AuctionID,
	}))
}

// rejectionEnvelope maps a submission error to the error envelope sent to
// the bidding connection only.
func rejectionEnvelope(err error) event.Envelope {
	var tooLow *auction.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		return event.NewError(tooLow.Error())
	case errors.Is(err, auction.ErrAuctionNotFound),
		errors.Is(err, auction.ErrAuctionNotActive):
		return event.NewError(err.Error())
	default:
		return event.NewError("bid could not be processed, please retry")
	}
}
