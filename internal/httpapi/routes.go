// Package httpapi serves the REST surface: the fallback bid path for
// clients without a websocket, the auction read endpoints, and health.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bidhub/bidhub/internal/auction"
	"github.com/bidhub/bidhub/internal/health"
	"github.com/bidhub/bidhub/internal/store"
)

// Routes assembles the full HTTP surface, websocket endpoint included.
func Routes(seq *auction.Sequencer, repos *store.Repositories, wsHandler http.Handler, hc *health.Handler, logger *slog.Logger) http.Handler {
	api := &API{seq: seq, repos: repos, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", hc.Liveness)
	r.Get("/readyz", hc.Readiness)
	r.Handle("/ws", wsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/bids", api.PlaceBid)
		r.Get("/auctions", api.ListAuctions)
		r.Get("/auctions/{id}", api.GetAuction)
		r.Get("/auctions/{id}/bids", api.ListBids)
	})

	return r
}
