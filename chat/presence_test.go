package chat

import (
	"fmt"
	"sync"
	"testing"
)

func TestPresenceTryAddTwice(t *testing.T) {
	p := NewPresence()
	if !p.TryAdd("alice") {
		t.Fatal("first TryAdd should succeed")
	}
	if p.TryAdd("alice") {
		t.Fatal("second TryAdd for the same identity should fail")
	}
}

func TestPresenceRemoveReleasesIdentity(t *testing.T) {
	p := NewPresence()
	if !p.TryAdd("alice") {
		t.Fatal("TryAdd should succeed")
	}
	p.Remove("alice")
	if !p.TryAdd("alice") {
		t.Fatal("TryAdd after Remove should succeed, no residual lock-out")
	}
}

func TestPresenceRemoveAbsentIsNoop(t *testing.T) {
	p := NewPresence()
	p.Remove("ghost")
	p.Remove("ghost")
	if got := p.Count(); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
}

func TestPresenceCount(t *testing.T) {
	p := NewPresence()
	const n, m = 10, 4
	for i := 0; i < n; i++ {
		if !p.TryAdd(fmt.Sprintf("user%d", i)) {
			t.Fatalf("TryAdd user%d failed", i)
		}
	}
	for i := 0; i < m; i++ {
		p.Remove(fmt.Sprintf("user%d", i))
	}
	if got := p.Count(); got != n-m {
		t.Fatalf("Count = %d, want %d", got, n-m)
	}
}

func TestPresenceConcurrentAddRemove(t *testing.T) {
	p := NewPresence()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user%d", i%10)
			for j := 0; j < 100; j++ {
				if p.TryAdd(id) {
					p.Remove(id)
				}
			}
		}(i)
	}
	wg.Wait()
	if got := p.Count(); got != 0 {
		t.Fatalf("Count after balanced add/remove = %d, want 0", got)
	}
	// The set must still be usable.
	if !p.TryAdd("alice") {
		t.Fatal("TryAdd after churn should succeed")
	}
}

func TestReleaseChecksOwnership(t *testing.T) {
	p := NewPresence()
	owner := newConn("alice")
	other := newConn("alice")

	p.Adopt("alice", owner)
	p.Release("alice", other)
	if !p.Online("alice") {
		t.Fatal("non-owner release must not evict the entry")
	}
	p.Release("alice", owner)
	if p.Online("alice") {
		t.Fatal("owner release should evict the entry")
	}
	p.Release("alice", owner) // absent entry is a no-op
}

func TestReleaseSkipsUnownedEntry(t *testing.T) {
	p := NewPresence()
	if !p.TryAdd("alice") {
		t.Fatal("claim failed")
	}
	p.Release("alice", newConn("alice"))
	if !p.Online("alice") {
		t.Fatal("claim without a connection must survive a stale release")
	}
}
