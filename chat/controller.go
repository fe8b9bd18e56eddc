package chat

import (
	"log/slog"
	"time"

	"github.com/onnwee/lounge/telemetry"
)

// Controller orchestrates the per-connection state machine over the shared
// registries. One Controller serves the whole process; each realtime
// connection gets a Conn from NewConn and the transport goroutine funnels
// inbound events into HandleJoin/HandleMessage, finishing with Disconnect.
type Controller struct {
	Registry *Registry
	Presence *Presence
	Room     *Room
}

// NewController wires the engine together.
func NewController(registry *Registry) *Controller {
	presence := NewPresence()
	return &Controller{
		Registry: registry,
		Presence: presence,
		Room:     NewRoom(presence),
	}
}

// NewConn registers a new connection. identity is empty for a connection
// whose HTTP session never claimed one; such a connection is disconnected
// on its first room action.
func (c *Controller) NewConn(identity string) *Conn {
	telemetry.IncConnections()
	return newConn(identity)
}

// HandleJoin moves an authenticated connection into the room. An
// unauthenticated or banned caller is forcibly disconnected; joining twice
// is a no-op.
func (c *Controller) HandleJoin(conn *Conn) error {
	s := &conn.session
	if !s.Authenticated() {
		c.Disconnect(conn)
		return ErrUnauthorized
	}
	if c.Registry.IsBanned(s.Identity) {
		c.Disconnect(conn)
		return ErrUnauthorized
	}
	if s.Joined {
		return nil
	}
	// Self-claimed identities were added to presence at claim time; this
	// binds the entry to its live connection and is the presence entry
	// point for credentialed and delegated identities, whose uniqueness
	// the provider already guarantees.
	c.Presence.Adopt(s.Identity, conn)
	s.Joined = true
	c.Room.Join(conn)
	slog.Debug("joined room", slog.String("identity", s.Identity))
	return nil
}

// HandleMessage routes one inbound chat message. Order of gates: forced
// disconnect for unauthenticated or banned senders, silent drop while not
// joined or on cooldown, then the moderation interpreter, then ordinary
// broadcast with truncation.
func (c *Controller) HandleMessage(conn *Conn, text string) error {
	s := &conn.session
	if !s.Authenticated() {
		c.Disconnect(conn)
		return ErrUnauthorized
	}
	if c.Registry.IsBanned(s.Identity) {
		c.Disconnect(conn)
		return ErrUnauthorized
	}
	if !s.Joined {
		return nil
	}
	now := time.Now()
	if s.onCooldown(now) {
		return nil
	}

	if notice, ok := c.interpretCommand(s.Identity, text); ok {
		c.Room.Broadcast(notice)
		return nil
	}

	s.LastMessageAt = now
	c.Room.Broadcast(incomingEvent(
		TypeChat,
		c.Registry.IsApproved(s.Identity),
		s.Identity,
		truncateRunes(text, MaxMessageLen),
	))
	telemetry.IncMessages()
	return nil
}

// DropIdentity ends an identity's live connection, if any, and releases its
// presence entry. Logout goes through here so an invalidated session cannot
// keep chatting over an already-open socket.
func (c *Controller) DropIdentity(identity string) {
	if identity == "" {
		return
	}
	if conn := c.Presence.owner(identity); conn != nil {
		c.Disconnect(conn)
		return
	}
	c.Presence.Remove(identity)
}

// Disconnect tears a connection down: presence release (only while this
// connection still owns the entry), room leave (idempotent), session
// cleared, outbound queue closed. Safe to call from any goroutine and from
// multiple paths (read pump exit, forced disconnect, logout races); the
// teardown body runs exactly once.
func (c *Controller) Disconnect(conn *Conn) {
	conn.teardownOnce.Do(func() {
		if id := conn.session.Identity; id != "" {
			c.Presence.Release(id, conn)
		}
		c.Room.Leave(conn)
		conn.session = Session{}
		conn.close()
		telemetry.DecConnections()
	})
}
