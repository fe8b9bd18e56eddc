package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/onnwee/lounge/telemetry"
)

// HandleBanAddress records an address ban when the caller presents the
// process admin secret. A wrong secret is a silent no-op: the response is an
// empty 200 so the endpoint cannot be used to probe for the secret.
func (h *Handlers) HandleBanAddress(w http.ResponseWriter, r *http.Request) {
	secret := r.PathValue("secret")
	address := r.PathValue("address")
	if secret == "" || address == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.AdminSecret)) != 1 {
		slog.Warn("admin ban with wrong secret", slog.String("addr", clientAddr(r)))
		w.WriteHeader(http.StatusOK)
		return
	}
	if h.engine.Registry.Ban(address) {
		telemetry.IncBans()
	}
	slog.Info("address banned", slog.String("target", address))
	writeStatus(w, http.StatusOK, statusSuccess)
}
