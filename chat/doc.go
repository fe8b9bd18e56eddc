// Package chat implements the single-room chat engine: presence tracking,
// room fan-out, rate limiting, the identity/ban registry, and the
// per-connection state machine.
//
// The engine is transport-agnostic. The server package owns the websocket
// upgrade and pumps; it hands each connection to a Controller, which walks it
// through Unauthenticated -> Authenticated -> Joined -> Disconnected and
// routes inbound messages through the moderation interpreter. All shared
// state (presence set, ban set, room membership) lives behind mutexes in this
// package; a Session is owned exclusively by its connection goroutine.
//
// Outbound delivery is best effort: each connection carries a bounded event
// queue, and a member whose queue is full when a broadcast arrives is
// disconnected rather than allowed to stall the sender.
package chat
