// ABOUTME: Entry point for the weather-travel MCP tool server
// ABOUTME: Subcommands serve over stdio/HTTP, call tools directly, and inspect the audit log

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"github.com/fatih/color"

	"github.com/2389/weather-travel/internal/auth"
	"github.com/2389/weather-travel/internal/config"
	"github.com/2389/weather-travel/internal/server"
	"github.com/2389/weather-travel/internal/store"
	"github.com/2389/weather-travel/internal/toolerr"
	"github.com/2389/weather-travel/internal/tools"
)

// Version is set at build time.
var version = "dev"

const banner = `
                     _   _                  _                        _
__      _____  __ _| |_| |__   ___ _ __   | |_ _ __ __ ___   _____| |
\ \ /\ / / _ \/ _' | __| '_ \ / _ \ '__|__| __| '__/ _' \ \ / / _ \ |
 \ V  V /  __/ (_| | |_| | | |  __/ | |___| |_| | | (_| |\ V /  __/ |
  \_/\_/ \___|\__,_|\__|_| |_|\___|_|      \__|_|  \__,_| \_/ \___|_|
`

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: weather-travel <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                   Serve MCP over stdio or HTTP")
	fmt.Fprintln(w, "  call <tool> [json]      Invoke a tool once and print the result")
	fmt.Fprintln(w, "  tools                   List available tools")
	fmt.Fprintln(w, "  audit                   Show recent invocations and per-tool stats")
	fmt.Fprintln(w, "  token --subject NAME    Issue a JWT signed with the configured secret")
	fmt.Fprintln(w, "  hash-token              Read a token on stdin and print its bcrypt hash")
	fmt.Fprintln(w, "  version                 Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "call":
		err = runCall(ctx, args)
	case "tools":
		err = runTools(args)
	case "audit":
		err = runAudit(ctx, args)
	case "token":
		err = runToken(args)
	case "hash-token":
		err = runHashToken()
	case "version", "--version", "-v":
		fmt.Println(version)
	case "help", "--help", "-h":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		red := color.New(color.FgRed)
		red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configFlags are shared by every subcommand that loads configuration.
type configFlags struct {
	path      string
	transport string
	host      string
	port      int
	logLevel  string
}

func (f *configFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.path, "config", os.Getenv("WEATHER_CONFIG"), "YAML or TOML config file")
	fs.StringVar(&f.transport, "transport", "", "stdio or http (overrides MCP_TRANSPORT)")
	fs.StringVar(&f.host, "host", "", "HTTP listen host (overrides MCP_HOST)")
	fs.IntVar(&f.port, "port", 0, "HTTP listen port (overrides MCP_PORT)")
	fs.StringVar(&f.logLevel, "log-level", f.logLevel, "debug, info, warn or error")
}

// load reads config, then applies flags, which win over the environment.
func (f *configFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if f.transport != "" {
		cfg.Transport = strings.ToLower(f.transport)
	}
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, args []string) error {
	var cf configFlags
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	// stdout belongs to the protocol in stdio mode; the banner goes to stderr.
	printStartup(os.Stderr, cfg, cf.path)

	logger.Info("starting weather-travel",
		"version", version,
		"transport", cfg.Transport,
		"config", cf.path,
	)

	srv, err := server.New(cfg, server.Options{Logger: logger, Version: version})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("close failed", "error", err)
		}
	}()

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printStartup(w io.Writer, cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", version)

	if configPath != "" {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Config:    %s\n", configPath)
	}
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Transport: %s\n", cfg.Transport)

	if cfg.Transport == config.TransportHTTP {
		green.Fprint(w, "    ▶ ")
		if cfg.Tailscale.Enabled {
			fmt.Fprint(w, "Tailscale: ")
			cyan.Fprint(w, cfg.Tailscale.Hostname)
			if cfg.Tailscale.Funnel {
				yellow.Fprint(w, " [funnel]")
			}
			if cfg.Tailscale.Ephemeral {
				gray.Fprint(w, " (ephemeral)")
			}
			fmt.Fprintln(w)
		} else {
			fmt.Fprintf(w, "HTTP:      http://%s/mcp\n", cfg.Server.Addr())
		}

		green.Fprint(w, "    ▶ ")
		fmt.Fprint(w, "Auth:      ")
		if cfg.Auth.Token != "" || cfg.Auth.TokenHash != "" || cfg.Auth.JWTSecret != "" {
			green.Fprintln(w, "bearer")
		} else {
			yellow.Fprintln(w, "disabled")
		}
	}
	if cfg.Audit.Path != "" {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Audit:     %s\n", cfg.Audit.Path)
	}
	fmt.Fprintln(w)
}

// newLocalServer builds a server for one-shot commands; no listener is opened.
func newLocalServer(cf *configFlags) (*server.Server, error) {
	cf.transport = config.TransportStdio
	cfg, err := cf.load()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.Logging)
	return server.New(cfg, server.Options{Logger: logger, Version: version})
}

func runCall(ctx context.Context, args []string) error {
	cf := configFlags{logLevel: "warn"}
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New(`usage: weather-travel call <tool> ['{"city":"Tokyo"}']`)
	}
	name := fs.Arg(0)
	rawArgs := json.RawMessage("{}")
	if fs.NArg() > 1 {
		rawArgs = json.RawMessage(fs.Arg(1))
		if !json.Valid(rawArgs) {
			return fmt.Errorf("arguments are not valid JSON: %s", fs.Arg(1))
		}
	}

	srv, err := newLocalServer(&cf)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx = tools.WithTransport(ctx, tools.TransportCLI)
	result, err := srv.Invoker().Invoke(ctx, name, rawArgs)
	if err != nil {
		kind := toolerr.KindOf(err)
		if kind == "" {
			kind = toolerr.Upstream
		}
		return fmt.Errorf("%s: %w", kind, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runTools(args []string) error {
	cf := configFlags{logLevel: "error"}
	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv, err := newLocalServer(&cf)
	if err != nil {
		return err
	}
	defer srv.Close()

	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)
	for _, def := range srv.Invoker().Definitions() {
		bold.Println(def.Name)
		fmt.Printf("  %s\n", def.Description)
		gray.Printf("  %s\n\n", def.InputSchema)
	}
	return nil
}

func runAudit(ctx context.Context, args []string) error {
	cf := configFlags{logLevel: "error"}
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	cf.register(fs)
	limit := fs.Int("limit", store.DefaultRecentLimit, "number of recent invocations to show")
	since := fs.Duration("since", 0, "only count invocations newer than this (e.g. 24h)")
	tool := fs.String("tool", "", "restrict stats to one tool")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cf.transport = config.TransportStdio
	cfg, err := cf.load()
	if err != nil {
		return err
	}
	if cfg.Audit.Path == "" {
		return errors.New("audit log is disabled: set audit.path or WEATHER_AUDIT_DB")
	}

	audit, err := store.NewSQLiteStore(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer audit.Close()

	filter := store.StatsFilter{Tool: *tool}
	if *since > 0 {
		t := time.Now().Add(-*since).UTC()
		filter.Since = &t
	}
	stats, err := audit.Stats(ctx, filter)
	if err != nil {
		return err
	}
	recent, err := audit.Recent(ctx, *limit)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	bold.Println("Per-tool totals")
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tTOTAL\tERRORS\tAVG")
	for _, st := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", st.Tool, st.Total, st.Errors, st.AvgDuration.Round(time.Millisecond))
	}
	_ = tw.Flush()

	fmt.Println()
	bold.Println("Recent invocations")
	tw = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOOL\tTRANSPORT\tCITY\tOUTCOME\tDURATION")
	for _, inv := range recent {
		outcome := green.Sprint(inv.Outcome)
		if inv.Outcome == store.OutcomeError {
			outcome = red.Sprintf("%s (%s)", inv.Outcome, inv.ErrorKind)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.CreatedAt.Local().Format(time.DateTime),
			inv.Tool, inv.Transport, inv.City, outcome,
			inv.Duration.Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

func runToken(args []string) error {
	cf := configFlags{logLevel: "error"}
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	cf.register(fs)
	subject := fs.String("subject", "", "token subject (required)")
	scopes := fs.String("scopes", "", "comma-separated scopes")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("--subject is required")
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (or MCP_AUTH_JWT_SECRET) is not set")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return err
	}
	token, err := verifier.Generate(*subject, auth.ParseScopes(*scopes), *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func runHashToken() error {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, 4096))
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return errors.New("no token on stdin")
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// setupLogger writes to stderr so stdout stays clean for the stdio transport.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
