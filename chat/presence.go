package chat

import (
	"sync"

	"github.com/onnwee/lounge/telemetry"
)

// Presence is the set of identities currently counted as online. TryAdd is
// the uniqueness gate for self-claimed identities: a second claim for a name
// that is still online fails until the first connection's removal completes.
// Each entry tracks the live connection that owns it, so a stale teardown
// cannot evict an identity that has since been reclaimed by someone else.
type Presence struct {
	mu     sync.Mutex
	online map[string]*Conn
}

// NewPresence returns an empty presence set.
func NewPresence() *Presence {
	return &Presence{online: make(map[string]*Conn)}
}

// TryAdd adds identity to the set with no owning connection yet, reporting
// false if it is already present.
func (p *Presence) TryAdd(identity string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.online[identity]; ok {
		return false
	}
	p.online[identity] = nil
	telemetry.SetOnline(len(p.online))
	return true
}

// Adopt marks owner as the live connection behind identity, adding the
// entry if the claim happened out of band.
func (p *Presence) Adopt(identity string, owner *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[identity] = owner
	telemetry.SetOnline(len(p.online))
}

// Remove deletes identity from the set regardless of ownership. Removing an
// absent identity is a no-op.
func (p *Presence) Remove(identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, identity)
	telemetry.SetOnline(len(p.online))
}

// Release deletes identity only while owner still holds it. A connection
// whose identity was logged out and reclaimed releases nothing.
func (p *Presence) Release(identity string, owner *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.online[identity]; !ok || cur != owner {
		return
	}
	delete(p.online, identity)
	telemetry.SetOnline(len(p.online))
}

// owner returns the live connection holding identity, if any.
func (p *Presence) owner(identity string) *Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[identity]
}

// Online reports whether identity is currently present.
func (p *Presence) Online(identity string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.online[identity]
	return ok
}

// Count returns the number of identities online.
func (p *Presence) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.online)
}
