package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/paramsync/internal/bridge"
	"github.com/nerrad567/paramsync/internal/infrastructure/config"
	"github.com/nerrad567/paramsync/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.ServerConfig
	WebSocket config.WebSocketConfig
	Metrics   config.MetricsConfig
	Logger    *logging.Logger
	Bridge    *bridge.Bridge
	Version   string
}

// Server is the HTTP server in front of a bridge.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg     config.ServerConfig
	wsCfg   config.WebSocketConfig
	metrics config.MetricsConfig
	logger  *logging.Logger
	bridge  *bridge.Bridge
	version string

	promRegistry *prometheus.Registry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. The Prometheus
// registry carries the Go, process and bridge collectors.
//
// Parameters:
//   - deps: Required dependencies (logger, bridge) plus listener, WebSocket
//     and metrics settings
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if deps.WebSocket.Path == "" {
		deps.WebSocket.Path = "/"
	}
	if deps.Metrics.Path == "" {
		deps.Metrics.Path = "/metrics"
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		bridge.NewCollector(deps.Bridge),
	)

	return &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WebSocket,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		bridge:       deps.Bridge,
		version:      deps.Version,
		promRegistry: promRegistry,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound synchronously so a port conflict is reported to the
// caller, then requests are served in a background goroutine. The WebSocket
// endpoint, status API and metrics share this listener. The server can be
// stopped with Close().
//
// Parameters:
//   - ctx: Unused; the listener lives until Close
//
// Returns:
//   - error: ErrBind wrapping the listen error if the address cannot be
//     bound; a plain error if the server was already started
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrBind, addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening",
		"address", ln.Addr().String(),
		"websocket_path", s.wsCfg.Path,
		"metrics", s.metrics.Enabled,
	)

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server, waiting up to ten seconds for
// in-flight requests. Hijacked WebSocket connections are closed by the hub.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
