// Package ops serves the operational endpoints: liveness, readiness against
// the database, Prometheus metrics and the admin cache refresh trigger.
// Debtor data is never exposed here.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/debtorkeeper/internal/logging"
	"github.com/dmitrijs2005/debtorkeeper/internal/requestctx"
)

const (
	readyTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message,omitempty"`
}

// NewRouter builds the ops handler. db may be nil, in which case readiness
// always fails. POST /cache/refresh is mounted only when rf is not nil.
func NewRouter(db Pinger, rf Refresher, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Nop{}
	}

	r := chi.NewRouter()
	r.Use(RequestContext)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, "ok", "")
	})

	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			writeHealth(w, http.StatusServiceUnavailable, "fail", "database not configured")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Warn(r.Context(), "readiness check failed", "error", err)
			writeHealth(w, http.StatusServiceUnavailable, "fail", "database unreachable")
			return
		}
		writeHealth(w, http.StatusOK, "ok", "")
	})

	r.Handle("/metrics", promhttp.Handler())

	if rf != nil {
		r.Post("/cache/refresh", refreshHandler(rf, log))
	}
	return r
}

// RequestContext stores a request ID and the caller's IP in the request
// context, so loggers downstream can attach them.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx = requestctx.WithRequestID(ctx, id)
		}
		ctx = requestctx.EnsureRequestID(ctx)

		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		ctx = requestctx.WithClientIP(ctx, ip)

		w.Header().Set("X-Request-ID", requestctx.RequestID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeHealth(w http.ResponseWriter, status int, state, msg string) {
	writeJSON(w, status, healthResponse{
		Status:    state,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Message:   msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server runs the ops handler until its context is cancelled.
type Server struct {
	httpServer *http.Server
	log        logging.Logger
}

func NewServer(addr string, h http.Handler, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop{}
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Run listens until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "ops endpoint listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
