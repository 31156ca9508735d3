// ABOUTME: Server wires config into the upstream client, tools, audit log and MCP bindings
// ABOUTME: Runs the stdio or HTTP transport (optionally on a tailnet) and shuts down gracefully

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/weather-travel/internal/auth"
	"github.com/2389/weather-travel/internal/config"
	"github.com/2389/weather-travel/internal/forecast"
	"github.com/2389/weather-travel/internal/geocache"
	"github.com/2389/weather-travel/internal/mcp"
	"github.com/2389/weather-travel/internal/openmeteo"
	"github.com/2389/weather-travel/internal/store"
	"github.com/2389/weather-travel/internal/tools"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Options carries process-level dependencies that do not belong in config.
type Options struct {
	Logger  *slog.Logger
	Version string
	// HTTPClient overrides the upstream HTTP client (tests).
	HTTPClient openmeteo.Doer
	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	// Now overrides the clock used for "today" (tests).
	Now func() time.Time
}

// Server owns every long-lived component of a running weather-travel process.
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	version    string
	stdin      io.Reader
	stdout     io.Writer
	dispatcher *tools.Dispatcher
	handler    *mcp.Handler
	audit      store.AuditStore
	authConfig *auth.Config
	verifier   auth.TokenVerifier

	httpServer  *http.Server
	tsnetServer *tsnet.Server
	mcpServer   *mcp.Server
}

// New builds a Server from cfg. The caller must Close it.
func New(cfg *config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		version: opts.Version,
		stdin:   opts.Stdin,
		stdout:  opts.Stdout,
	}
	if s.stdin == nil {
		s.stdin = os.Stdin
	}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}

	client := openmeteo.NewClient(openmeteo.Config{
		GeocodingURL:  cfg.Weather.GeocodingURL,
		ForecastURL:   cfg.Weather.ForecastURL,
		UserAgent:     cfg.Weather.UserAgent,
		Timeout:       cfg.Weather.Timeout,
		Backoff:       cfg.Weather.Backoff,
		MaxRetryAfter: cfg.Weather.MaxRetryAfter,
		RateLimit:     cfg.Weather.RateLimit,
		RateBurst:     cfg.Weather.RateBurst,
		Breaker: openmeteo.BreakerConfig{
			Enabled:             cfg.Weather.Breaker.Enabled,
			ConsecutiveFailures: cfg.Weather.Breaker.ConsecutiveFailures,
			OpenTimeout:         cfg.Weather.Breaker.OpenTimeout,
		},
		HTTPClient: opts.HTTPClient,
		Logger:     logger,
	})

	toolsCfg := tools.Config{
		Geocoder:   client.Geocoder(geocache.New[forecast.Location](cfg.Weather.GeocodeCacheSize)),
		Forecaster: client.Forecaster(),
		Now:        opts.Now,
		Logger:     logger,
	}

	if cfg.Audit.Path != "" {
		audit, err := initAudit(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		s.audit = audit
		toolsCfg.Recorder = audit
		logger.Info("invocation audit enabled", "path", cfg.Audit.Path)
	}

	s.dispatcher = tools.NewDispatcher(toolsCfg)
	s.handler = mcp.NewHandler(s.dispatcher, mcp.ServerInfo{Name: "weather-travel", Version: opts.Version}, logger.With("component", "mcp"))

	if cfg.Transport == config.TransportHTTP {
		if err := s.setupHTTP(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	return s, nil
}

// initAudit opens the SQLite audit log, creating its directory.
func initAudit(path string) (store.AuditStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating audit directory: %w", err)
			}
		}
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("initializing audit store: %w", err)
	}
	return s, nil
}

func (s *Server) setupHTTP() error {
	cfg := s.config

	authCfg, err := auth.NewConfig(cfg.AuthSettings(), cfg.Server.Host, cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	s.authConfig = authCfg
	if authCfg.Enabled() {
		s.verifier, err = auth.NewVerifier(authCfg)
		if err != nil {
			return fmt.Errorf("creating token verifier: %w", err)
		}
	} else if !isLoopback(cfg.Server.Host) && !cfg.Tailscale.Enabled {
		s.logger.Warn("HTTP transport is unauthenticated on a non-loopback address", "host", cfg.Server.Host)
	}

	s.mcpServer, err = mcp.NewServer(mcp.Config{
		Handler:       s.handler,
		Logger:        s.logger,
		Auth:          authCfg,
		TokenVerifier: s.verifier,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Handler returns the HTTP routes. It is nil for the stdio transport.
func (s *Server) Handler() http.Handler {
	if s.mcpServer == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/", indexHandler(renderIndex(s.version, s.logger)))
	s.mcpServer.RegisterRoutes(mux)
	return mux
}

// Invoker exposes the tool dispatcher for in-process calls.
func (s *Server) Invoker() tools.Invoker {
	return s.dispatcher
}

// Audit returns the audit store, or nil when auditing is disabled.
func (s *Server) Audit() store.AuditStore {
	return s.audit
}

// Run serves the configured transport until ctx is cancelled or the
// transport fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	if s.config.Transport == config.TransportStdio {
		return s.handler.ServeStdio(ctx, s.stdin, s.stdout)
	}

	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := s.startHTTP(ln)
	serverErr := s.waitForShutdownSignal(ctx, errCh)
	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// setupListener creates the HTTP listener (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		return s.setupTailscaleListener(ctx)
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

func (s *Server) startHTTP(ln net.Listener) chan error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening",
			"addr", ln.Addr().String(),
			"endpoint", mcp.Path,
			"auth", s.authConfig.Enabled(),
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (s *Server) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		s.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The caller's context is already canceled at this point.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server and the tailnet node.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	if s.httpServer != nil {
		errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	}
	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
		s.tsnetServer = nil
	}
	return errors.Join(errs...)
}

// Close releases the audit store. Call after Run returns.
func (s *Server) Close() error {
	if s.audit == nil {
		return nil
	}
	err := s.audit.Close()
	s.audit = nil
	if err != nil {
		return fmt.Errorf("audit close: %w", err)
	}
	return nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "weather-travel", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :443 (Funnel or
// tailnet TLS).
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}
	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		s.tsnetServer = nil
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	if tsCfg.Funnel {
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			return nil, s.abortTailscale(fmt.Errorf("listening on tailscale funnel: %w", err))
		}
		return ln, nil
	}

	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		return nil, s.abortTailscale(fmt.Errorf("listening on tailscale HTTPS port: %w", err))
	}
	lc, err := s.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		return nil, s.abortTailscale(fmt.Errorf("getting tailscale local client: %w", err))
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

func (s *Server) abortTailscale(err error) error {
	_ = s.tsnetServer.Close()
	s.tsnetServer = nil
	return err
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	s.logger.Info("tailscale node ready",
		"hostname", hostname,
		"tailscale_ip", tsAddr,
		"mcp_endpoint", "https://"+dnsName+mcp.Path,
	)
}
