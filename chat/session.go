package chat

import "time"

// Limits applied to claims and messages.
const (
	// MaxIdentityLen caps a display identity at claim time.
	MaxIdentityLen = 20
	// MaxMessageLen is the rune count a chat message is truncated to
	// before broadcast. Longer content is dropped silently, not rejected.
	MaxMessageLen = 128
	// MessageCooldown is the minimum gap between accepted messages from
	// one session.
	MessageCooldown = 5 * time.Second
)

// Session is the per-connection record: the claimed identity, whether the
// connection has joined the room, and the time of its last accepted
// message. It is owned exclusively by its connection's goroutine and is
// cleared on disconnect.
type Session struct {
	Identity      string
	Joined        bool
	LastMessageAt time.Time
}

// Authenticated reports whether an identity has been attached.
func (s *Session) Authenticated() bool { return s.Identity != "" }

// onCooldown reports whether a message at now falls inside the cooldown
// window following the last accepted message.
func (s *Session) onCooldown(now time.Time) bool {
	return !s.LastMessageAt.IsZero() && now.Sub(s.LastMessageAt) < MessageCooldown
}

// TruncateIdentity returns the first MaxIdentityLen runes of raw.
func TruncateIdentity(raw string) string {
	return truncateRunes(raw, MaxIdentityLen)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
