// Package httpapi is the inbound HTTP transport over the sandbox control
// surface (internal/adapter/inbound/device), the userland stand-in for
// opening /dev/sandbox and issuing ioctls. Grounded in structure on the
// teacher's internal/adapter/inbound/http package: a *http.Server built
// from a http.ServeMux, a Prometheus registry mounted at /metrics, and a
// health endpoint, scaled down to the three device requests this module
// exposes.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/inbound/device"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

// Server is the HTTP transport adapter exposing a Device's VERSION,
// SETSPEC, and NLISTS requests over plain JSON endpoints.
type Server struct {
	dev    *device.Device
	server *http.Server
	logger *slog.Logger
}

// NewServer builds a Server listening on addr. reg is the Prometheus
// registry mounted at /metrics, e.g. one made by prometheus.NewRegistry().
func NewServer(addr string, dev *device.Device, reg *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{dev: dev, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/setspec", s.handleSetSpec)
	mux.HandleFunc("/nlists", s.handleNumLists)
	mux.HandleFunc("/evaluate", s.handleEvaluate)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe runs the server until ctx is canceled, then shuts it down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"version": s.dev.Version()})
}

func (s *Server) handleNumLists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"nlists": s.dev.NumLists()})
}

// setSpecRequest mirrors the SETSPEC ioctl's {script_ptr, script_len, flags}
// argument struct, carried as JSON instead of a raw userland pointer.
type setSpecRequest struct {
	Script string `json:"script"`
	Flags  uint32 `json:"flags"`
}

func (s *Server) handleSetSpec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req setSpecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.dev.SetSpec(r.Context(), req.Script, policy.Flags(req.Flags)); err != nil {
		s.logger.Warn("setspec failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "installed"})
}

// evaluateRequest names a rule to evaluate plus the fields visible to any
// guard or callback it carries.
type evaluateRequest struct {
	Rule   string         `json:"rule"`
	Fields map[string]any `json:"fields"`
}

// handleEvaluate drives Device.Evaluate directly, the HTTP-facing
// equivalent of a kernel hook calling into Dispatcher. A policy carrying
// ON_DENY_ABORT that denies this rule panics with policy.DenyAbortSignal
// (see that type's doc comment); this handler is exactly the kind of
// kernel-adapter boundary that comment says should recover the panic and
// turn it into termination of the requesting context, here a closed
// connection rather than a process kill.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	name, err := ruleset.ParseName(req.Rule)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		sig, ok := r.(policy.DenyAbortSignal)
		if !ok {
			panic(r)
		}
		s.logger.Warn("evaluate: ON_DENY_ABORT fired, closing connection", "rule", sig.Rule.String())
		w.WriteHeader(499)
	}()

	verdict, err := s.dev.Evaluate(r.Context(), name, req.Fields, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"verdict": verdict.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
