package server

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/lounge/chat"
	"github.com/onnwee/lounge/config"
	"github.com/onnwee/lounge/redditapi"
)

// testEnv bundles a mux plus the engine behind it for assertions.
type testEnv struct {
	handler http.Handler
	engine  *chat.Controller
	cfg     *config.Config
	reddit  *redditapi.Client
}

func newTestEnv(t *testing.T, registry *chat.Registry) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if registry == nil {
		registry = chat.NewRegistry(nil, nil, nil)
	}
	cfg := &config.Config{
		HTTPAddr:        ":0",
		AdminSecret:     "admin-secret",
		RateLimit:       100,
		RateLimitStrict: 10,
		RateLimitWindow: time.Minute,
		MinAccountAge:   30 * 24 * time.Hour,
		MinKarma:        10,
	}
	engine := chat.NewController(registry)
	reddit := redditapi.New("client-id", "client-secret", "https://example.com/oauth_callback", "identity")
	return &testEnv{
		handler: NewMux(ctx, cfg, engine, reddit),
		engine:  engine,
		cfg:     cfg,
		reddit:  reddit,
	}
}

func TestHealthzEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestReadyzEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("readyz status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "ready") {
		t.Errorf("readyz body = %q", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent && w.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d", w.Code)
	}
	for _, h := range []string{
		"Access-Control-Allow-Origin",
		"Access-Control-Allow-Methods",
		"Access-Control-Allow-Headers",
	} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing CORS header: %s", h)
		}
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("correlation id should be generated")
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if got := w.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("correlation id = %q, want reuse of corr-123", got)
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestStatusRecorderHijack(t *testing.T) {
	rec := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	var w http.ResponseWriter = &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}

	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Fatal("status recorder must implement http.Hijacker")
	}
	if _, _, err := hj.Hijack(); err != nil {
		t.Fatalf("hijack: %v", err)
	}
	if !rec.hijacked {
		t.Fatal("hijack should reach the underlying writer")
	}

	plain := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	if _, _, err := plain.Hijack(); err == nil {
		t.Fatal("hijack without an underlying hijacker should fail")
	}
}
