// Package server provides an HTTP server wrapper with graceful shutdown and
// sane timeout defaults, suitable for hosting a slipstream shim next to the
// application's new routes.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	defaultReadyTimeout = 5 * time.Second
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Config defines the timeouts and address for the HTTP server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server wraps the standard [http.Server] around any handler, typically a
// router whose fallback is a bridged legacy application.
type Server struct {
	cfg        Config
	httpServer *http.Server

	mu    sync.RWMutex
	addr  string
	ready chan struct{}
}

// New initializes a Server with the given config and root handler.
// Zero-valued timeouts fall back to the package defaults.
func New(cfg Config, handler http.Handler) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}

	return &Server{
		cfg:   cfg,
		ready: make(chan struct{}),
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start runs the HTTP server and blocks until it is closed. The given
// context becomes the base context of every request, so cancelling it (or
// shutting the server down) reaches in-flight bridged calls the same way a
// client disconnect would.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	close(s.ready) // Addr() is now available

	err = s.httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server without interrupting active
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the network address the server is listening on. It waits for
// the server to be ready, making it safe for tests with dynamic ports.
func (s *Server) Addr() string {
	select {
	case <-s.ready:
	case <-time.After(defaultReadyTimeout):
		return ""
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}
