package chat

import (
	"log/slog"
	"sync"

	"github.com/onnwee/lounge/telemetry"
)

// SendQueueSize bounds each connection's outbound event queue. A member
// whose queue is full when a broadcast arrives is disconnected instead of
// stalling the sender.
const SendQueueSize = 32

// Conn is one realtime connection's view of the engine: its session and its
// outbound event queue. The transport goroutine drains Events and watches
// Done; everything else goes through the Controller.
type Conn struct {
	session Session

	out          chan Event
	done         chan struct{}
	closeOnce    sync.Once
	teardownOnce sync.Once
}

func newConn(identity string) *Conn {
	return &Conn{
		session: Session{Identity: identity},
		out:     make(chan Event, SendQueueSize),
		done:    make(chan struct{}),
	}
}

// Identity returns the session identity, empty while unauthenticated.
func (c *Conn) Identity() string { return c.session.Identity }

// Events is the outbound queue the transport write pump drains.
func (c *Conn) Events() <-chan Event { return c.out }

// Done is closed when the connection has been torn down and the transport
// should close the underlying socket.
func (c *Conn) Done() <-chan struct{} { return c.done }

// send enqueues without blocking. False means the queue was full or the
// connection is already closed.
func (c *Conn) send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- ev:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Room is the single broadcast group. Broadcast delivers to a snapshot of
// the membership taken at call time; delivery per member is best effort and
// at most once. Membership changes additionally emit an online_count event
// carrying the presence count.
type Room struct {
	mu       sync.Mutex
	members  map[*Conn]struct{}
	presence *Presence
}

// NewRoom creates the room over the given presence set.
func NewRoom(presence *Presence) *Room {
	return &Room{
		members:  make(map[*Conn]struct{}),
		presence: presence,
	}
}

// Join adds conn to the membership and announces the new online count.
func (r *Room) Join(conn *Conn) {
	r.mu.Lock()
	r.members[conn] = struct{}{}
	r.mu.Unlock()
	r.Broadcast(onlineCountEvent(r.presence.Count()))
}

// Leave removes conn from the membership, announcing the count only if conn
// was actually a member. Leaving twice is a no-op.
func (r *Room) Leave(conn *Conn) {
	r.mu.Lock()
	_, wasMember := r.members[conn]
	delete(r.members, conn)
	r.mu.Unlock()
	if wasMember {
		r.Broadcast(onlineCountEvent(r.presence.Count()))
	}
}

// Broadcast fans ev out to the current membership. Members that cannot
// accept the event (full queue) are closed; their full teardown happens when
// the transport observes Done and calls Controller.Disconnect.
func (r *Room) Broadcast(ev Event) {
	r.mu.Lock()
	snapshot := make([]*Conn, 0, len(r.members))
	for conn := range r.members {
		snapshot = append(snapshot, conn)
	}
	r.mu.Unlock()

	for _, conn := range snapshot {
		if !conn.send(ev) {
			slog.Warn("dropping slow room member",
				slog.String("identity", conn.Identity()),
				slog.String("event", ev.Name))
			telemetry.IncSlowConsumerDrops()
			conn.close()
		}
	}
	telemetry.IncBroadcasts()
}
