// Package server provides the importable HTTP server behind nix-browser.
// E2E tests start and stop it programmatically without running main().
package server

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thesyncim/nixbrowser/pkg/nix"
	"github.com/thesyncim/nixbrowser/pkg/store"
	"github.com/thesyncim/nixbrowser/pkg/theme"
)

// Config holds server configuration options.
type Config struct {
	Addr         string        // Listen address (e.g., ":8080" or ":0" for random port)
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout
}

// DefaultConfig returns a configuration suitable for testing.
// Uses ":0" to bind to a random available port.
func DefaultConfig() Config {
	return Config{
		Addr:         ":0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Option customises a Server.
type Option func(*Server)

// WithSource sets where Nix information comes from. Defaults to running
// `nix` from PATH with a short cache.
func WithSource(src nix.Source) Option {
	return func(s *Server) { s.source = src }
}

// WithRunner sets how `nix flake show` is run. Defaults to nix from PATH.
func WithRunner(r nix.Runner) Option {
	return func(s *Server) { s.runner = r }
}

// WithSysInfo overrides the host description used by health checks.
func WithSysInfo(si nix.SysInfo) Option {
	return func(s *Server) { s.sysInfo = si }
}

// WithTheme sets the initial theme. Defaults to theme.Default().
func WithTheme(t *theme.Theme) Option {
	return func(s *Server) { s.theme = t }
}

// WithStore enables the flake registry routes.
func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithLogger sets the request and error logger. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Server is the nix-browser HTTP server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	mu         sync.Mutex
	running    bool

	source  nix.Source
	runner  nix.Runner
	sysInfo nix.SysInfo
	store   *store.Store
	log     zerolog.Logger
	web     fs.FS
	pages   map[string]*template.Template

	themeMu sync.RWMutex
	theme   *theme.Theme
	css     string
}

// NewServer creates a new server with the given configuration.
// The server is not started until Start() is called.
func NewServer(cfg Config, opts ...Option) (*Server, error) {
	s := &Server{
		source:  nix.NewCachedSource(nix.RunnerSource{Runner: nix.DefaultCmd()}, 10*time.Second),
		runner:  nix.DefaultCmd(),
		sysInfo: nix.CurrentSysInfo(),
		log:     zerolog.Nop(),
		theme:   theme.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.web = Assets()

	var err error
	if s.pages, err = parsePages(s.web); err != nil {
		return nil, err
	}
	if err := s.SetTheme(s.theme); err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.logRequests(s.routes()),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// SetTheme validates t and swaps it in, regenerating theme.css. Safe to call
// while serving.
func (s *Server) SetTheme(t *theme.Theme) error {
	if err := t.Validate(); err != nil {
		return err
	}
	sources, err := t.Sources(s.web)
	if err != nil {
		return err
	}
	css := t.CSS(sources)

	s.themeMu.Lock()
	defer s.themeMu.Unlock()
	s.theme = t
	s.css = css
	return nil
}

// Theme returns the active theme.
func (s *Server) Theme() *theme.Theme {
	s.themeMu.RLock()
	defer s.themeMu.RUnlock()
	return s.theme
}

// Start begins listening and serving HTTP requests.
// Returns the actual address the server is listening on (useful when port is 0).
// This method is non-blocking - the server runs in a goroutine.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = ln
	s.addr = ln.Addr().String()
	s.running = true

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("server stopped")
		}
	}()

	return s.addr, nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns a browsable base URL. Wildcard listen addresses ([::]:port)
// are rewritten to localhost.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
