// Command driving-tour starts the driving tour server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Server settings are read from a TOML file (written with defaults on first
// run); flags override the listen address, tour directory and ngrok tunnel.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/driving-tour/api"
	"github.com/wricardo/driving-tour/game/config"
	"github.com/wricardo/driving-tour/game/leaderboard"
	"github.com/wricardo/driving-tour/game/service"
	"github.com/wricardo/driving-tour/game/session"
	"github.com/wricardo/driving-tour/transport/mcp"
	"github.com/wricardo/driving-tour/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Driving Tour Server"
)

// Configuration flags override the settings file.
var (
	settingsPath = flag.String("settings", getEnvDefault("SETTINGS_PATH", "settings.toml"), "Path to the server settings file")
	addr         = flag.String("addr", "", "HTTP listen address (overrides settings)")
	configDir    = flag.String("config-dir", os.Getenv("CONFIG_DIR"), "Directory containing tour configurations (overrides settings)")
	staticDir    = flag.String("static", "", "Directory of static files served at /")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// getEnvDefault returns the environment value of key, or fallback.
func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Run HTTP server with settings.toml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -addr :9090          # Run HTTP server on port 9090\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp            # Run MCP stdio server\n", os.Args[0])
	}
}

// services is everything the transports share.
type services struct {
	tours       service.TourService
	sessions    *session.Manager
	persistence *session.FilePersistence
}

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	settings, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read settings: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(settings.Log.Level, *debug)
	slog.SetDefault(log)
	if envErr == nil {
		log.Debug("loaded environment variables from .env file")
	} else if !os.IsNotExist(envErr) {
		log.Warn("error loading .env file", "err", envErr)
	}

	if dsn := getEnvDefault("SENTRY_DSN", settings.Sentry.Dsn); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: settings.Sentry.Environment,
			Release:     Version,
		}); err != nil {
			log.Warn("sentry initialization failed", "err", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Determine mode from command
	mode := "server"
	if args := flag.Args(); len(args) > 0 {
		mode = args[0]
	}

	log.Info("starting", "app", AppName, "version", Version, "mode", mode)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := initializeServices(ctx, log, settings)
	if err != nil {
		log.Error("failed to initialize services", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := svc.sessions.SaveAllSessions(); err != nil {
			log.Warn("failed to save sessions", "err", err)
		}
	}()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(ctx, log, svc.tours)

	case "server", "http":
		runHTTPServer(ctx, log, settings, svc.tours)

	default:
		log.Error("unknown mode, use 'server' (default) or 'stdio-mcp'", "mode", mode)
		os.Exit(2)
	}
}

// loadSettings reads the settings file and applies flag overrides.
func loadSettings() (config.Settings, error) {
	settings, err := config.ReadSettings(*settingsPath)
	if err != nil {
		return settings, err
	}
	if *addr != "" {
		settings.Server.Address = *addr
	}
	if *configDir != "" {
		settings.Server.ConfigDir = *configDir
	}
	if *ngrokEnabled {
		settings.Ngrok.Enabled = true
	}
	if *ngrokDomain != "" {
		settings.Ngrok.Domain = *ngrokDomain
	}
	return settings, nil
}

// newLogger builds the process logger. MCP stdio owns stdout, so logs
// always go to stderr.
func newLogger(level string, debug bool) *slog.Logger {
	lvl, err := config.ParseLogLevel(level)
	if debug {
		lvl = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	if err != nil {
		log.Warn("falling back to info logging", "err", err)
	}
	return log
}

// baseURLFor turns a listen address into a URL the process can call itself
// on.
func baseURLFor(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "http://" + listenAddr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// newHTTPHandler wires the hub, REST API and /mcp endpoint for baseURL.
func newHTTPHandler(ctx context.Context, log *slog.Logger, tours service.TourService, baseURL string) http.Handler {
	hub := websocket.NewHub(log.With("component", "hub"), websocket.WithLiveService(tours))
	go hub.Run(ctx)

	mcpClient := mcp.NewClient(baseURL)

	opts := []api.Option{api.WithMCPHandler(mcpClient.HTTPHandler())}
	if *staticDir != "" {
		opts = append(opts, api.WithStaticDir(*staticDir))
	}
	return api.NewServer(log.With("component", "api"), tours, hub, opts...)
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled (via flag, settings or environment), it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, log *slog.Logger, settings config.Settings, tours service.TourService) {
	listenAddr := settings.Server.Address
	handler := newHTTPHandler(ctx, log, tours, baseURLFor(listenAddr))

	if sentry.CurrentHub().Client() != nil {
		handler = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(handler)
	}

	httpServer := &http.Server{
		Addr:        listenAddr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		base := baseURLFor(listenAddr)
		log.Info("HTTP server listening", "addr", listenAddr)
		log.Info("endpoints",
			"rest", base+"/api",
			"websocket", strings.Replace(base, "http", "ws", 1)+"/ws?session=<session_id>",
			"mcp", base+"/mcp")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", "err", err)
			os.Exit(1)
		}
	}()

	ngrokShouldRun := settings.Ngrok.Enabled
	if !ngrokShouldRun {
		if envEnabled := os.Getenv("NGROK_ENABLED"); envEnabled == "true" || envEnabled == "1" {
			ngrokShouldRun = true
		}
	}

	if ngrokShouldRun {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, log, settings.Ngrok.Domain, handler)
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", "err", err)
	}

	wg.Wait()
	log.Info("server stopped")
}

// runNgrok serves handler through a public tunnel until ctx is done.
func runNgrok(ctx context.Context, log *slog.Logger, domain string, handler http.Handler) {
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
		if authToken == "" {
			authToken = os.Getenv("NGROK_AUTH_TOKEN")
		}
	}

	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info("using custom ngrok domain", "domain", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error("failed to start ngrok tunnel", "err", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warn("failed to close ngrok tunnel", "err", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Info("ngrok tunnel established",
		"url", ngrokURL,
		"rest", ngrokURL+"/api",
		"mcp", ngrokURL+"/mcp")

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		log.Warn("ngrok server error", "err", err)
	}
	log.Info("ngrok tunnel closed")
}

// initializeServices wires the config manager, session persistence,
// leaderboard and tour service, and starts the background routines.
func initializeServices(ctx context.Context, log *slog.Logger, settings config.Settings) (*services, error) {
	configManager, err := config.NewManager(settings.Server.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	configManager.SetLanguage(settings.Server.Language)
	if settings.Server.DefaultTour != "" && settings.Server.DefaultTour != configManager.DefaultName() {
		if err := configManager.SetDefault(settings.Server.DefaultTour); err != nil {
			log.Warn("default tour unavailable", "tour", settings.Server.DefaultTour, "err", err)
		}
	}

	persistence, err := session.NewFilePersistence(settings.Server.SessionDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(log.With("component", "sessions"), persistence)
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Warn("failed to load persisted sessions", "err", err)
	}

	var board service.Leaderboard
	if settings.Server.LeaderboardPath != "" {
		lb, err := leaderboard.New(settings.Server.LeaderboardPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open leaderboard: %w", err)
		}
		board = lb
	}

	tours := service.NewTourService(log.With("component", "service"), sessionManager, configManager, board)

	maxAge := time.Duration(settings.Server.SessionMaxAgeHours) * time.Hour
	if maxAge > 0 {
		go sessionCleanupRoutine(ctx, log, sessionManager, maxAge)
	}
	go filesystemSyncRoutine(ctx, log, sessionManager, persistence)

	return &services{
		tours:       tours,
		sessions:    sessionManager,
		persistence: persistence,
	}, nil
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within maxAge.
func sessionCleanupRoutine(ctx context.Context, log *slog.Logger, manager *session.Manager, maxAge time.Duration) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				log.Info("cleaned up expired sessions", "removed", removed)
			}
		}
	}
}

// filesystemSyncRoutine drops sessions from memory when their files are
// deleted.
func filesystemSyncRoutine(ctx context.Context, log *slog.Logger, manager *session.Manager, persistence session.SessionPersistence) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if pruned := pruneOrphans(log, manager, persistence); pruned > 0 {
			log.Info("filesystem sync pruned orphaned sessions", "pruned", pruned)
		}
	}
}

func pruneOrphans(log *slog.Logger, manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.Debug("pruned session from memory (file deleted)", "session", sess.ID)
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:8080; if unavailable, it
// starts an internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, log *slog.Logger, tours service.TourService) {
	externalURL := getEnvDefault("TOUR_API_URL", "http://localhost:8080")
	log.Info("checking for external API server", "url", externalURL)

	baseURL := externalURL
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Info("external API server found, using it for MCP", "url", externalURL)
	} else {
		if resp != nil {
			resp.Body.Close()
		}
		log.Info("no external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Error("failed to get available port", "err", err)
			os.Exit(1)
		}

		baseURL = "http://" + listener.Addr().String()
		httpServer := &http.Server{Handler: newHTTPHandler(ctx, log, tours, baseURL)}

		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Error("internal HTTP server error", "err", err)
			}
		}()
		defer httpServer.Close()

		log.Info("internal HTTP server started", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		log.Error("MCP stdio server error", "err", err)
	}
}
