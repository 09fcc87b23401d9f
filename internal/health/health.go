// Package health serves the liveness and readiness probes of the game
// backend.
//
//   - /healthz reports process liveness and whether the server runs in
//     mock mode; it always returns 200.
//   - /readyz evaluates the registered dependency probes (provider circuit
//     breakers, the conversation store) and returns 503 when any fails.
//
// Responses are JSON: {"status": "ok"|"fail", "mock_mode": bool, "checks":
// {name: "ok"|"fail: reason"}}.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// probeTimeout bounds a single readiness probe. A hung dependency must not
// hold the endpoint longer than this.
const probeTimeout = 3 * time.Second

// Check probes one dependency. It returns nil when the dependency can serve
// traffic and must respect context cancellation.
type Check func(ctx context.Context) error

// Handler serves /healthz and /readyz. Probes are registered with [Handler.Add]
// before the handler is mounted; afterwards the handler is safe for concurrent
// use.
type Handler struct {
	mock   bool
	names  []string
	checks map[string]Check
}

// New creates a Handler. The mock flag is surfaced in probe responses so an
// operator can tell a mock deployment from a misconfigured real one.
func New(mock bool) *Handler {
	return &Handler{
		mock:   mock,
		checks: make(map[string]Check),
	}
}

// Add registers a named readiness probe. Registering the same name again
// replaces the previous probe. Returns the handler for chaining.
func (h *Handler) Add(name string, check Check) *Handler {
	if _, dup := h.checks[name]; !dup {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
	return h
}

// status is the JSON response body for both probe endpoints.
type status struct {
	Status   string            `json:"status"`
	MockMode bool              `json:"mock_mode"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// Healthz is the liveness probe. A process that can serve HTTP is alive, so
// it always returns 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, status{Status: "ok", MockMode: h.mock})
}

// Readyz runs every registered probe concurrently, each bounded by
// [probeTimeout], and returns 503 when any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	outcomes := make([]string, len(h.names))

	var wg sync.WaitGroup
	for i, name := range h.names {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				outcomes[i] = "fail: " + err.Error()
			} else {
				outcomes[i] = "ok"
			}
		}(i, h.checks[name])
	}
	wg.Wait()

	res := status{
		Status:   "ok",
		MockMode: h.mock,
		Checks:   make(map[string]string, len(h.names)),
	}
	code := http.StatusOK
	for i, name := range h.names {
		res.Checks[name] = outcomes[i]
		if outcomes[i] != "ok" {
			res.Status = "fail"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, res)
}

// Register mounts both probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
