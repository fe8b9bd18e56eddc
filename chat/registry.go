package chat

import (
	"crypto/subtle"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Registry holds the identity data the engine consults on every claim and
// room action: the credential map and approved set (read-only after
// construction) and the ban set (appended to at runtime by moderators and
// the admin ban endpoint).
type Registry struct {
	mu          sync.RWMutex
	credentials map[string]string
	approved    map[string]struct{}
	banned      map[string]struct{}
}

// NewRegistry builds a registry from the startup dataset. Entries in
// approved and banned may be identities or network addresses; the engine
// does not distinguish.
func NewRegistry(credentials map[string]string, approved, banned []string) *Registry {
	r := &Registry{
		credentials: make(map[string]string, len(credentials)),
		approved:    make(map[string]struct{}, len(approved)),
		banned:      make(map[string]struct{}, len(banned)),
	}
	for identity, secret := range credentials {
		r.credentials[identity] = secret
	}
	for _, identity := range approved {
		r.approved[identity] = struct{}{}
	}
	for _, key := range banned {
		r.banned[key] = struct{}{}
	}
	return r
}

// Approve adds an identity to the approved set. Used at startup to seed the
// configured super-moderator; the set is not mutated after that.
func (r *Registry) Approve(identity string) {
	if identity == "" {
		return
	}
	r.mu.Lock()
	r.approved[identity] = struct{}{}
	r.mu.Unlock()
}

// IsBanned reports whether an identity or address is in the ban set.
func (r *Registry) IsBanned(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.banned[key]
	return ok
}

// IsApproved reports whether an identity carries the moderator/verified badge.
func (r *Registry) IsApproved(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.approved[identity]
	return ok
}

// IsReserved reports whether an identity has a credential entry and so may
// not be self-claimed.
func (r *Registry) IsReserved(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.credentials[identity]
	return ok
}

// VerifyCredential checks identity/secret against the credential map. A
// stored secret beginning with a bcrypt prefix is treated as a hash;
// anything else is compared in constant time.
func (r *Registry) VerifyCredential(identity, secret string) bool {
	r.mu.RLock()
	stored, ok := r.credentials[identity]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) == 1
}

// Ban adds an identity or address to the ban set. It is idempotent and
// reports whether the entry is newly banned. There is no unban path; bans
// last for the lifetime of the process.
func (r *Registry) Ban(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.banned[key]; ok {
		return false
	}
	r.banned[key] = struct{}{}
	slog.Info("ban recorded", slog.String("target", key))
	return true
}
