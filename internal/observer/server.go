// Package observer exposes a running engine over HTTP.
//
// The observer is the external party of the notification contract: it
// registers the engine's single change callback, keeps a bounded change feed
// for pollers, and offers the access-layer operations (read, write, force,
// release) by index or by name.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/scanrt/internal/engine"
)

// Server is the HTTP observer for one engine.
type Server struct {
	engine *engine.Engine
	feed   *Feed
	logger *slog.Logger
	router *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithFeedSize sets how many change entries are retained.
func WithFeedSize(n int) Option {
	return func(s *Server) {
		s.feed = NewFeed(n)
	}
}

// New creates a server for e and registers it as the engine's observer,
// replacing any callback registered before.
func New(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine: e,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = NewFeed(DefaultFeedSize)
	}

	e.RegisterNotifier(s.onChange)
	s.router = s.routes()
	return s
}

// Feed returns the server's change feed.
func (s *Server) Feed() *Feed {
	return s.feed
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/vars", s.listVars).Methods(http.MethodGet)
	api.HandleFunc("/vars/{ref}", s.getVar).Methods(http.MethodGet)
	api.HandleFunc("/vars/{ref}", s.putVar).Methods(http.MethodPut)
	api.HandleFunc("/vars/{ref}/force", s.forceVar).Methods(http.MethodPost)
	api.HandleFunc("/vars/{ref}/release", s.releaseVar).Methods(http.MethodPost)
	api.HandleFunc("/changes", s.listChanges).Methods(http.MethodGet)
	api.HandleFunc("/state", s.state).Methods(http.MethodGet)
	api.HandleFunc("/start", s.start).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.stop).Methods(http.MethodPost)
	api.HandleFunc("/resource", s.resource).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	return r
}

// onChange records the value the program wrote, as queued by the tick, not
// the variable's value at delivery.
func (s *Server) onChange(n engine.Notification) {
	s.feed.append(Entry{
		Index:  n.Index,
		Name:   s.engine.Slots()[n.Index].Name,
		Value:  n.Value,
		Forced: n.Forced,
		Tick:   n.Tick,
		At:     time.Now(),
	})
}

// Serve accepts connections on l until ctx is cancelled, then shuts the
// server down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(l)
	}()
	s.logger.Info("observer listening", "addr", l.Addr().String())

	select {
	case err := <-errc:
		return fmt.Errorf("observer: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("observer shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("observer: %w", err)
	}
	return nil
}
