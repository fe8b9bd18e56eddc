package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed static
var staticFS embed.FS

var pageTemplates = template.Must(template.ParseFS(staticFS, "static/*.html"))

func renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("template render failed", slog.String("page", name), slog.Any("err", err))
	}
}

// HandleIndex renders the chat page for an authenticated session, otherwise
// redirects to the login page.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	identity := h.requestIdentity(r)
	if identity == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	renderPage(w, "index.html", struct{ Username string }{identity})
}

// HandleLoginPage renders the login page.
func (h *Handlers) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "login.html", struct{ Error string }{r.URL.Query().Get("error")})
}

// HandleLoginUsernamePage renders the claim form bound to a server-issued
// key. An empty key redirects back to the login page.
func (h *Handlers) HandleLoginUsernamePage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	renderPage(w, "login_user.html", struct{ Key string }{key})
}

// HandleFavicon serves the embedded favicon.
func (h *Handlers) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	b, err := staticFS.ReadFile("static/favicon.svg")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(b)
}
