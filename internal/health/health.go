// Package health exposes liveness and readiness endpoints. Readiness
// runs the registered checkers, so a lost store connection flips the
// service out of rotation without killing the process.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bidhub/bidhub/internal/clock"
)

const checkTimeout = 5 * time.Second

// Report is the JSON body of a health response.
type Report struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Checker is a named readiness probe.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves the health endpoints.
type Handler struct {
	mu       sync.RWMutex
	ready    bool
	checkers []Checker
	clk      clock.Clock
}

// NewHandler creates a Handler running the given checkers on readiness
// probes. The service starts not ready; call SetReady once serving.
func NewHandler(clk clock.Clock, checkers ...Checker) *Handler {
	return &Handler{checkers: checkers, clk: clk}
}

// SetReady flips whether the service accepts traffic.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Liveness reports 200 whenever the process can answer at all.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, Report{Status: "ok", Timestamp: h.now()})
}

// Readiness reports 200 only when the service is marked ready and every
// checker passes.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	ready := h.ready
	h.mu.RUnlock()

	if !ready {
		h.write(w, http.StatusServiceUnavailable, Report{Status: "not_ready", Timestamp: h.now()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.checkers))
	code := http.StatusOK
	status := "ready"
	for _, c := range h.checkers {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = err.Error()
			code = http.StatusServiceUnavailable
			status = "not_ready"
			continue
		}
		checks[c.Name] = "ok"
	}

	h.write(w, code, Report{Status: status, Checks: checks, Timestamp: h.now()})
}

func (h *Handler) now() string {
	return h.clk.Now().UTC().Format(time.RFC3339)
}

func (h *Handler) write(w http.ResponseWriter, code int, rep Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
