package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/expression"
)

// Server runs a Handler on a TCP listener.
type Server struct {
	engine      *Engine
	handler     *Handler
	addr        string
	serverURL   string
	readTimeout time.Duration
	writeTimeout time.Duration
	handlerOpts []HandlerOption
	log         *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	running    bool
	done       chan struct{}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address. The default is ":8080"; port 0 picks a
// free port.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// WithServerURL sets the URL reported by system.server.url. By default it
// is derived from the bound address.
func WithServerURL(url string) ServerOption {
	return func(s *Server) { s.serverURL = url }
}

// WithTimeouts sets the HTTP read and write timeouts.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// WithHandlerOptions passes options to the Handler.
func WithHandlerOptions(opts ...HandlerOption) ServerOption {
	return func(s *Server) { s.handlerOpts = append(s.handlerOpts, opts...) }
}

// NewServer creates a server for e.
func NewServer(e *Engine, opts ...ServerOption) *Server {
	s := &Server{
		engine:      e,
		addr:        ":8080",
		readTimeout: 30 * time.Second,
		writeTimeout: 30 * time.Second,
		log:         e.log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = NewHandler(e, s.handlerOpts...)
	return s
}

// Handler returns the HTTP handler served.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server is already running")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	port := 0
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	url := s.serverURL
	if url == "" {
		url = "http://localhost:" + strconv.Itoa(port)
	}
	s.engine.exprs.SetServer(expression.ServerInfo{Port: port, URL: url})

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error", "error", err)
		}
	}(s.httpServer, s.done)

	s.running = true
	s.log.Info("server started", "addr", ln.Addr().String(), "url", url)
	return nil
}

// Addr returns the bound address, or "" when the server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down, waiting for in-flight exchanges until ctx
// expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	err := s.httpServer.Shutdown(ctx)
	<-s.done
	s.listener = nil
	if err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

// Reload replaces the loaded resources. The previous resources keep
// serving when the new ones are invalid.
func (s *Server) Reload(resources []*config.Resource) error {
	return s.engine.Load(resources)
}

// ReloadOnSignal calls load and reloads the resources on every SIGHUP
// until ctx is done.
func (s *Server) ReloadOnSignal(ctx context.Context, load func() ([]*config.Resource, error)) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			s.log.Info("reloading configuration")
			resources, err := load()
			if err == nil {
				err = s.Reload(resources)
			}
			if err != nil {
				s.log.Error("reload failed, keeping previous configuration", "error", err)
			}
		}
	}
}
