package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type server struct {
	httpSrv *http.Server
	log     *zap.Logger
}

// router wires the monitor's HTTP surface. Split from startServer so tests
// can hit handlers without binding a port.
func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", m.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", m.handleStatus).Methods(http.MethodGet)
	if m.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

// handleHealthz reports the monitored environment's verdict, not the
// monitor's own liveness: 200 healthy, 503 otherwise or before the first
// cycle completes.
func (m *Monitor) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	snap, ok := m.Last()
	w.Header().Set("Content-Type", "application/json")
	if !ok || !snap.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	status := "pending"
	if ok {
		status = snap.Overall.String()
	}
	json.NewEncoder(w).Encode(map[string]string{
		"status":      status,
		"environment": m.opts.Environment,
	})
}

// handleStatus returns the full last snapshot plus the unhealthy streak.
func (m *Monitor) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap, ok := m.Last()
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
		return
	}
	json.NewEncoder(w).Encode(struct {
		Environment     string      `json:"environment"`
		UnhealthyStreak int         `json:"unhealthy_streak"`
		Snapshot        interface{} `json:"snapshot"`
	}{m.opts.Environment, m.Streak(), snap})
}

func (m *Monitor) startServer(ctx context.Context) (*server, error) {
	srv := &http.Server{
		Addr:              m.opts.Listen,
		Handler:           m.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s := &server{httpSrv: srv, log: m.log}

	go func() {
		m.log.Info("http server listening", zap.String("addr", m.opts.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("http server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()
	return s, nil
}

func (s *server) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpSrv.Shutdown(shutdownCtx)
}
