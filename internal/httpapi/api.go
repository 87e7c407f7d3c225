// Package httpapi is the HTTP surface: routing, middleware and the JSON
// handlers over the directory service and the session authority.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"rosterd.org/internal/audit"
	"rosterd.org/internal/directory"
	"rosterd.org/internal/obs"
	"rosterd.org/internal/session"
	"rosterd.org/internal/stream"
)

// ReadyProbe reports readiness, pinging the database when one is wired.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	directory *directory.Service
	authority *session.Authority
	stream    *stream.Stream
	logs      audit.Reader

	rateBurst  int
	ratePerSec int
}

// Option configures optional API collaborators.
type Option func(*API)

// WithStream wires the live action-log feed.
func WithStream(s *stream.Stream) Option {
	return func(a *API) { a.stream = s }
}

// WithLogReader wires the action-log history endpoint. Only sinks that keep
// history (the Postgres one) can serve it.
func WithLogReader(r audit.Reader) Option {
	return func(a *API) { a.logs = r }
}

func New(rp ReadyProbe, version string, svc *directory.Service, authority *session.Authority, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		directory:  svc,
		authority:  authority,
		rateBurst:  40,
		ratePerSec: 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// directory
	a.mux.HandleFunc("/v1/accounts", a.handleAccountsCollection)
	a.mux.HandleFunc("/v1/accounts/", a.handleAccountResource)
	a.mux.HandleFunc("/v1/accounts/bulk", a.handleBulkProvision)

	// sessions
	a.mux.HandleFunc("/v1/sessions", a.handleSessions)

	// action log: live feed plus history when the sink keeps one
	a.mux.HandleFunc("/v1/logs/stream", a.handleLogStream)
	if a.logs != nil {
		a.mux.HandleFunc("/v1/logs", a.handleLogList)
	}

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 10<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "rosterd-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "rosterd-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
