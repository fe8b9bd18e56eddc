package server

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
)

// sessionCookie is the browser cookie carrying the session token.
const sessionCookie = "lounge_session"

// sessionStore maps opaque session tokens to claimed identities. It backs
// both the page handlers and the websocket upgrade: the engine's presence
// set tracks who is online, this store only answers "which identity does
// this browser hold".
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]string // token -> identity
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]string)}
}

// create issues a token for identity. An empty token means entropy failure;
// callers must treat that as an internal error.
func (s *sessionStore) create(identity string) string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		slog.Error("session token generation failed", slog.Any("err", err))
		return ""
	}
	token := hex.EncodeToString(b)
	s.mu.Lock()
	s.sessions[token] = identity
	s.mu.Unlock()
	return token
}

// identity resolves a token to its claimed identity.
func (s *sessionStore) identity(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.sessions[token]
	return identity, ok
}

// remove deletes a token.
func (s *sessionStore) remove(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// requestIdentity resolves the claimed identity behind a request's session
// cookie, empty when the caller holds no valid session.
func (h *Handlers) requestIdentity(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	identity, ok := h.sessions.identity(c.Value)
	if !ok {
		return ""
	}
	return identity
}

// issueSession creates a session for identity and sets the cookie. False
// means token generation failed and a 500 was written.
func (h *Handlers) issueSession(w http.ResponseWriter, identity string) bool {
	token := h.sessions.create(identity)
	if token == "" {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

// clearSession drops the caller's session, returning the identity it held.
func (h *Handlers) clearSession(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	identity, ok := h.sessions.identity(c.Value)
	if ok {
		h.sessions.remove(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	return identity
}
