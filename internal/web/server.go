package web

import (
	"context"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/cjeanneret/SpiderGo/internal/debug"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// Deps groups what the web surface drives.
type Deps struct {
	Broadcaster  *StatusBroadcaster
	Move         MoveFunc
	RunRoute     RouteFunc // nil when no route is configured
	State        StateReader
	FormDefaults FormConfig
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, deps Deps) (*Server, error) {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = NewStatusBroadcaster()
	}

	handlers := NewHandlers(deps.Broadcaster, deps.Move, deps.RunRoute, deps.State, deps.FormDefaults, subFS)

	return &Server{
		addr:     addr,
		handlers: handlers,
	}, nil
}

// Handlers returns the request handlers of the server.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /move", s.handlers.HandleMove)
	mux.HandleFunc("POST /route", s.handlers.HandleRoute)
	mux.HandleFunc("GET /position", s.handlers.HandlePosition)
	mux.HandleFunc("GET /config", s.handlers.HandleConfig)
	mux.HandleFunc("GET /status/stream", s.handlers.HandleStatusStream)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.handlers.staticFS))))
	mux.HandleFunc("GET /{$}", s.handlers.ServeIndex) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
// Moves started from the web are cancelled with ctx and Run returns once they ended.
func (s *Server) Run(ctx context.Context) error {
	s.handlers.SetBaseContext(ctx)
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
		// status streams end with ctx so Shutdown does not wait for them
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("Web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// jobs see ctx cancelled, wait until they released the positioner
		s.handlers.Wait()
		return err
	}
}
