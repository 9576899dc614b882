package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/bidhub/bidhub/internal/auction"
	"github.com/bidhub/bidhub/internal/store"
)

// API holds the handlers' collaborators.
type API struct {
	seq    *auction.Sequencer
	repos  *store.Repositories
	logger *slog.Logger
}

type placeBidRequest struct {
	AuctionID int64           `json:"auctionId"`
	UserID    int64           `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Minimum string `json:"minimum,omitempty"`
}

// PlaceBid is the REST fallback for bid submission. It runs the same
// sequenced path as the websocket transport, so ordering guarantees hold
// across both surfaces. Accepted bids are also broadcast to the room.
func (a *API) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	b, err := a.seq.SubmitBid(r.Context(), req.AuctionID, req.UserID, req.Amount)
	if err != nil {
		a.writeBidError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (a *API) writeBidError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLow *auction.BidTooLowError
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound):
		writeError(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, auction.ErrAuctionNotActive):
		writeError(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &tooLow):
		writeError(w, http.StatusBadRequest, errorResponse{
			Error:   tooLow.Error(),
			Minimum: tooLow.Minimum.String(),
		})
	default:
		a.logger.ErrorContext(r.Context(), "bid submission failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable, please retry"})
	}
}

// ListAuctions returns all auctions, newest first. With ?status=active
// only auctions still accepting bids are returned, soonest-ending first.
func (a *API) ListAuctions(w http.ResponseWriter, r *http.Request) {
	var (
		auctions []store.Auction
		err      error
	)
	if r.URL.Query().Get("status") == store.StatusActive {
		auctions, err = a.repos.Auctions.ListActive(r.Context())
	} else {
		auctions, err = a.repos.Auctions.List(r.Context())
	}
	if err != nil {
		a.logger.ErrorContext(r.Context(), "listing auctions failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable, please retry"})
		return
	}
	writeJSON(w, http.StatusOK, auctions)
}

// GetAuction returns one auction by id.
func (a *API) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	auc, err := a.repos.Auctions.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, errorResponse{Error: "auction not found"})
		return
	}
	if err != nil {
		a.logger.ErrorContext(r.Context(), "reading auction failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable, please retry"})
		return
	}
	writeJSON(w, http.StatusOK, auc)
}

// ListBids returns an auction's bids, highest amount first.
func (a *API) ListBids(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	if _, err := a.repos.Auctions.GetByID(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, errorResponse{Error: "auction not found"})
		return
	} else if err != nil {
		a.logger.ErrorContext(r.Context(), "reading auction failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable, please retry"})
		return
	}

	bids, err := a.repos.Bids.ListForAuction(r.Context(), id)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "listing bids failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable, please retry"})
		return
	}
	if bids == nil {
		bids = []store.Bid{}
	}
	writeJSON(w, http.StatusOK, bids)
}

func auctionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid auction id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, resp errorResponse) {
	writeJSON(w, code, resp)
}
