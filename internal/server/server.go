package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/twentyone/internal/session"
)

// Server is the HTTP boundary: a JSON API for game actions and a
// WebSocket feed for session events. All game semantics live behind
// the session manager; handlers only translate requests and errors.
type Server struct {
	cfg      *Config
	logger   *log.Logger
	sessions *session.Manager
	upgrader websocket.Upgrader
	router   chi.Router
}

// NewServer creates the server and mounts its routes
func NewServer(logger *log.Logger, cfg *Config, sessions *session.Manager) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.WithPrefix("server"),
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins
				// In production, implement proper origin checking
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.router = s.routes()
	return s
}

// Handler returns the mounted routes, exposed for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.router,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
