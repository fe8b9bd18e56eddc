package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/lounge/chat"
	"github.com/onnwee/lounge/telemetry"
)

// claim status payloads, kept byte-compatible with the original wire format.
const (
	statusSuccess      = "success"
	statusFailure      = "failure"
	statusUnauthorized = "unauthorized"
)

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": status}); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}

// HandleCheckUsername is the self-claim endpoint. The claimed identity must
// be free among online identities and must not be reserved by a credential
// entry; on success the presence add has already happened and the caller
// receives a session cookie.
func (h *Handlers) HandleCheckUsername(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	identity := chat.TruncateIdentity(strings.TrimSpace(r.FormValue("username")))
	if identity == "" {
		writeStatus(w, http.StatusUnauthorized, statusFailure)
		return
	}
	if h.engine.Registry.IsBanned(identity) || h.engine.Registry.IsBanned(clientAddr(r)) {
		telemetry.IncClaimRejected()
		writeStatus(w, http.StatusUnauthorized, statusFailure)
		return
	}
	if h.engine.Presence.Online(identity) {
		// Already online wins over reserved: the caller sees a plain
		// name-taken failure either way.
		telemetry.IncClaimRejected()
		writeStatus(w, http.StatusUnauthorized, statusFailure)
		return
	}
	if h.engine.Registry.IsReserved(identity) {
		// Reserved names need the credentialed claim endpoint.
		telemetry.IncClaimRejected()
		writeStatus(w, http.StatusUnauthorized, statusUnauthorized)
		return
	}
	if !h.engine.Presence.TryAdd(identity) {
		// Lost the claim race since the check above.
		telemetry.IncClaimRejected()
		writeStatus(w, http.StatusUnauthorized, statusFailure)
		return
	}
	if !h.issueSession(w, identity) {
		h.engine.Presence.Remove(identity)
		return
	}
	telemetry.IncClaimAccepted()
	slog.Info("identity claimed", slog.String("identity", identity), slog.String("addr", clientAddr(r)))
	writeStatus(w, http.StatusOK, statusSuccess)
}

// HandleLoginWithUsername is the credentialed claim endpoint.
func (h *Handlers) HandleLoginWithUsername(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	identity := r.FormValue("username")
	secret := r.FormValue("password")
	if identity == "" || secret == "" {
		writeStatus(w, http.StatusUnauthorized, statusFailure)
		return
	}
	if h.engine.Registry.IsBanned(identity) || h.engine.Registry.IsBanned(clientAddr(r)) {
		telemetry.IncClaimRejected()
		writeStatus(w, http.StatusUnauthorized, statusFailure)
		return
	}
	if !h.engine.Registry.VerifyCredential(identity, secret) {
		telemetry.IncClaimRejected()
		slog.Warn("credential verification failed", slog.String("identity", identity), slog.String("addr", clientAddr(r)))
		writeStatus(w, http.StatusUnauthorized, statusFailure)
		return
	}
	if !h.issueSession(w, identity) {
		return
	}
	telemetry.IncClaimAccepted()
	slog.Info("credentialed login", slog.String("identity", identity))
	writeStatus(w, http.StatusOK, statusSuccess)
}

// HandleLogout clears the caller's session, tears down the identity's live
// connection, and releases its presence entry.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if identity := h.clearSession(w, r); identity != "" {
		h.engine.DropIdentity(identity)
		slog.Info("logged out", slog.String("identity", identity))
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}
