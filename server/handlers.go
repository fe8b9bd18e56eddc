// Package server exposes the HTTP API and the realtime websocket transport:
// pages, identity claiming, delegated login, moderation/admin helpers,
// health probes and metrics. It includes permissive CORS for development and
// injects correlation IDs into request contexts for consistent logging.
package server

import (
	"sync"
	"time"

	"github.com/onnwee/lounge/chat"
	"github.com/onnwee/lounge/config"
	"github.com/onnwee/lounge/redditapi"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cfg      *config.Config
	engine   *chat.Controller
	sessions *sessionStore
	reddit   *redditapi.Client

	stateStore map[string]time.Time
	stateMu    sync.RWMutex
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(cfg *config.Config, engine *chat.Controller, reddit *redditapi.Client) *Handlers {
	return &Handlers{
		cfg:        cfg,
		engine:     engine,
		sessions:   newSessionStore(),
		reddit:     reddit,
		stateStore: make(map[string]time.Time),
	}
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState adds a new OAuth state to the store with cleanup if needed.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	// Clean expired states periodically to prevent unbounded growth
	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}

	// If we're still over the limit after cleanup, refuse to add more
	// (failing the OAuth flow beats a memory exhaustion attack).
	if len(h.stateStore) >= maxOAuthStates {
		return
	}

	h.stateStore[state] = expiry
}

// takeOAuthState validates and consumes a state nonce.
func (h *Handlers) takeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	expiry, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return time.Now().Before(expiry)
}
