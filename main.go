// Command lounge is the single-room chat service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Reads the startup credential/approval dataset (users.json) into the
//     in-memory identity and ban registry.
//   - Serves the HTTP surface: pages, identity claiming, delegated login,
//     the admin address-ban endpoint, /healthz, /readyz, /metrics, and the
//     /ws realtime transport.
//
// All chat state lives in this one process; shutdown is graceful on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/lounge/chat"
	"github.com/onnwee/lounge/config"
	"github.com/onnwee/lounge/redditapi"
	"github.com/onnwee/lounge/server"
	"github.com/onnwee/lounge/store"
	"github.com/onnwee/lounge/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("lounge", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Startup dataset: credentials, approved set, ban list. Absence means
	// empty registries, not a startup failure.
	dataset, err := store.Load(cfg.UsersFile)
	if err != nil {
		slog.Error("failed to load users file", slog.Any("err", err))
		os.Exit(1)
	}
	registry := chat.NewRegistry(dataset.Credentials, dataset.Approved, dataset.Banned)
	registry.Approve(cfg.SuperModerator)

	engine := chat.NewController(registry)

	// Delegated identity provider client; routes report not-configured
	// until the env is present.
	reddit := redditapi.New(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RedditRedirectURI, cfg.RedditScopes)
	if err := cfg.ValidateExternalLoginReady(); err != nil {
		slog.Info("external login disabled", slog.Any("reason", err))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	slog.Info("starting http server", slog.String("addr", cfg.HTTPAddr))
	if err := server.Start(ctx, cfg, engine, reddit); err != nil {
		slog.Error("http server exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}
