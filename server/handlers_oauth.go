package server

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/lounge/chat"
	"github.com/onnwee/lounge/redditapi"
	"github.com/onnwee/lounge/telemetry"
)

// loginFailedPath is where every delegated-login failure lands that has no
// specific reason to surface. Provider errors are logged server-side only.
const loginFailedPath = "/login?error=login_failed"

// HandleExternalLogin begins delegated identity verification by redirecting
// to the provider's authorization page.
func (h *Handlers) HandleExternalLogin(w http.ResponseWriter, r *http.Request) {
	if !h.reddit.Configured() {
		http.Error(w, "external login not configured (need REDDIT_CLIENT_ID + REDDIT_REDIRECT_URI)", http.StatusBadRequest)
		return
	}
	// generate state
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "state gen error", 500)
		return
	}
	st := hex.EncodeToString(b)
	h.addOAuthState(st, time.Now().Add(10*time.Minute))
	http.Redirect(w, r, h.reddit.AuthCodeURL(st), http.StatusFound)
}

// HandleOAuthCallback completes delegated verification: state check, code
// exchange, profile fetch, eligibility policy, presence gate. Upstream
// failures become the generic login-failed redirect; they never surface
// provider detail or crash the handler.
func (h *Handlers) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Redirect(w, r, loginFailedPath, http.StatusFound)
		return
	}
	if !h.takeOAuthState(st) {
		http.Redirect(w, r, loginFailedPath, http.StatusFound)
		return
	}

	ctx := r.Context()
	tok, err := h.reddit.Exchange(ctx, code)
	if err != nil {
		slog.Warn("delegated login: code exchange failed", slog.Any("err", err))
		http.Redirect(w, r, loginFailedPath, http.StatusFound)
		return
	}
	profile, err := h.reddit.FetchProfile(ctx, tok)
	if err != nil {
		slog.Warn("delegated login: profile fetch failed", slog.Any("err", err))
		http.Redirect(w, r, loginFailedPath, http.StatusFound)
		return
	}

	verdict := redditapi.Evaluate(profile, h.cfg.MinAccountAge, h.cfg.MinKarma, time.Now())
	identity := chat.TruncateIdentity(verdict.Identity)
	if !verdict.Eligible {
		telemetry.IncClaimRejected()
		slog.Info("delegated login rejected",
			slog.String("identity", identity),
			slog.String("reason", verdict.Reason))
		http.Error(w, verdict.Reason, http.StatusForbidden)
		return
	}
	if h.engine.Registry.IsBanned(identity) || h.engine.Registry.IsBanned(clientAddr(r)) {
		telemetry.IncClaimRejected()
		http.Error(w, redditapi.ReasonNotEligible, http.StatusForbidden)
		return
	}
	if !h.engine.Presence.TryAdd(identity) {
		// Verified identity already online somewhere else.
		telemetry.IncClaimRejected()
		http.Redirect(w, r, loginFailedPath, http.StatusFound)
		return
	}
	if !h.issueSession(w, identity) {
		h.engine.Presence.Remove(identity)
		return
	}
	telemetry.IncClaimAccepted()
	slog.Info("delegated login verified", slog.String("identity", identity))
	http.Redirect(w, r, "/", http.StatusFound)
}
