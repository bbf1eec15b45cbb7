// Package status serves the node's operational HTTP surface.
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cube/observability"
	"cube/params"
	"cube/registry"
	"cube/syncmgr"
)

// Snapshot is the /status response body.
type Snapshot struct {
	Chain             string `json:"chain"`
	Synced            bool   `json:"synced"`
	BitcoinSyncHeight uint64 `json:"bitcoin_sync_height"`
	RollupSyncHeight  uint64 `json:"rollup_sync_height"`
	Accounts          uint64 `json:"accounts"`
	Contracts         uint64 `json:"contracts"`
}

// Server exposes health, status and metrics endpoints.
type Server struct {
	log      *slog.Logger
	chain    params.Chain
	sync     *syncmgr.Manager
	registry *registry.Manager
}

// NewServer wires the managers whose state the endpoints report.
func NewServer(chain params.Chain, sync *syncmgr.Manager, reg *registry.Manager, log *slog.Logger) *Server {
	return &Server{
		log:      log.With("component", "status"),
		chain:    chain,
		sync:     sync,
		registry: reg,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/status", s.handleStatus)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		observability.HTTPMetrics().Observe(r.URL.Path, rec.status, time.Since(start))
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := Snapshot{
		Chain:             s.chain.String(),
		Synced:            s.sync.Synced(),
		BitcoinSyncHeight: s.sync.BitcoinSyncHeight(),
		RollupSyncHeight:  s.sync.RollupSyncHeight(),
		Accounts:          s.registry.AccountCount(),
		Contracts:         s.registry.ContractCount(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.log.Warn("status encode failed", "err", err)
	}
}

// ListenAndServe runs the HTTP server until it fails.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("status server listening", "addr", addr)
	return srv.ListenAndServe()
}
