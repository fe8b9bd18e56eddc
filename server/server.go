package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/lounge/chat"
	"github.com/onnwee/lounge/config"
	"github.com/onnwee/lounge/redditapi"
	"github.com/onnwee/lounge/telemetry"
)

// unlimitedPaths are exempt from rate limiting: probes, metrics, static.
var unlimitedPaths = map[string]bool{
	"/healthz":     true,
	"/readyz":      true,
	"/metrics":     true,
	"/favicon.svg": true,
}

// strictPaths carry the tighter claim/login budget on top of nothing else --
// the strict limiter replaces the general one for these routes.
var strictPaths = map[string]bool{
	"/check_username":      true,
	"/login_with_username": true,
	"/external_login":      true,
	"/oauth_callback":      true,
}

// NewMux returns the HTTP handler with all routes.
// The provided context bounds the rate limiter cleanup goroutines.
func NewMux(ctx context.Context, cfg *config.Config, engine *chat.Controller, reddit *redditapi.Client) http.Handler {
	corsCfg := loadCORSConfig()
	general := chat.NewLimiter(ctx, cfg.RateLimit, cfg.RateLimitWindow)
	strict := chat.NewLimiter(ctx, cfg.RateLimitStrict, cfg.RateLimitWindow)

	handlers := NewHandlers(cfg, engine, reddit)

	mux := http.NewServeMux()

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Pages and static assets
	mux.HandleFunc("/", handlers.HandleIndex)
	mux.HandleFunc("/login", handlers.HandleLoginPage)
	mux.HandleFunc("GET /login_username/{key}", handlers.HandleLoginUsernamePage)
	mux.HandleFunc("GET /login_username/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("/favicon.svg", handlers.HandleFavicon)

	// Identity claiming
	mux.HandleFunc("/check_username", handlers.HandleCheckUsername)
	mux.HandleFunc("/login_with_username", handlers.HandleLoginWithUsername)
	mux.HandleFunc("/external_login", handlers.HandleExternalLogin)
	mux.HandleFunc("/oauth_callback", handlers.HandleOAuthCallback)
	mux.HandleFunc("/logout", handlers.HandleLogout)

	// Admin
	mux.HandleFunc("GET /ban/{secret}/{address}", handlers.HandleBanAddress)

	// Realtime transport
	mux.HandleFunc("/ws", handlers.HandleWS)

	// Health and readiness endpoints
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)

	// Rate limiting wrapper: strict budget on claim/login routes, general
	// budget everywhere else except probes and static assets.
	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case unlimitedPaths[r.URL.Path]:
			mux.ServeHTTP(w, r)
		case strictPaths[r.URL.Path]:
			strictRateLimitMiddleware(mux, strict).ServeHTTP(w, r)
		default:
			rateLimitMiddleware(mux, general).ServeHTTP(w, r)
		}
	})

	// Banned addresses are rejected before anything else.
	blocked := blockBannedAddresses(limited, engine.Registry)

	// Wrap with correlation ID injector and tracing middleware
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		// Start tracing span if enabled
		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		// Capture status code via custom ResponseWriter
		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		blocked.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		// Record HTTP status in span
		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
		if wrappedWriter.statusCode >= 400 {
			code, msg := telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", wrappedWriter.statusCode))
			span.SetStatus(code, msg)
		}
	})
	return withCORSConfig(handler, corsCfg)
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker so the websocket upgrade can take over
// the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, cfg *config.Config, engine *chat.Controller, reddit *redditapi.Client) error {
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     NewMux(ctx, cfg, engine, reddit),
		ReadTimeout: 5 * time.Second,
		// WriteTimeout stays 0: the websocket route holds its writer for
		// the connection's lifetime.
		IdleTimeout: 60 * time.Second,
	}

	// Shutdown goroutine
	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
