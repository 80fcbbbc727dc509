// Package registry tracks which rider and captain identities currently have
// a live realtime channel. State is process-local and rebuilt from join
// events after a restart.
package registry

import (
	"sync"

	"github.com/example/ride-hail/internal/models"
	"github.com/example/ride-hail/internal/observability"
)

// Channel is one live client connection. Implementations must be safe for
// concurrent Send calls.
type Channel interface {
	Send(event string, payload any) error
	Close() error
}

type entry struct {
	role models.Role
	ch   Channel
}

type Registry struct {
	mu        sync.RWMutex
	byID      map[string]entry
	byChannel map[Channel]string
}

func New() *Registry {
	return &Registry{
		byID:      make(map[string]entry),
		byChannel: make(map[Channel]string),
	}
}

// Register binds identity to ch. A repeat join for the same identity
// supersedes the previous channel, which is closed so stale connections
// never receive another dispatch.
func (r *Registry) Register(identity string, role models.Role, ch Channel) {
	r.mu.Lock()
	// a channel re-joining under a new identity abandons its old one
	if prev, bound := r.byChannel[ch]; bound && prev != identity {
		if e, live := r.byID[prev]; live && e.ch == ch {
			delete(r.byID, prev)
		}
	}
	old, had := r.byID[identity]
	r.byID[identity] = entry{role: role, ch: ch}
	r.byChannel[ch] = identity
	if had && old.ch != ch {
		delete(r.byChannel, old.ch)
	}
	size := len(r.byID)
	r.mu.Unlock()

	if had && old.ch != ch {
		_ = old.ch.Close()
	}
	observability.ConnectionsActive.Set(float64(size))
}

// Lookup returns the current channel for identity, or false if offline.
func (r *Registry) Lookup(identity string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[identity]
	if !ok {
		return nil, false
	}
	return e.ch, true
}

// Role returns the role the identity joined with.
func (r *Registry) Role(identity string) (models.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[identity]
	return e.role, ok
}

// Identity resolves a channel back to the identity it is bound to. Channels
// that never joined, or were superseded, resolve to false.
func (r *Registry) Identity(ch Channel) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byChannel[ch]
	return id, ok
}

// UnregisterChannel is the disconnect path. It only clears the identity
// mapping if ch is still the identity's current channel, so a slow
// disconnect of a superseded connection cannot knock a fresh one offline.
func (r *Registry) UnregisterChannel(ch Channel) {
	r.mu.Lock()
	id, ok := r.byChannel[ch]
	if ok {
		delete(r.byChannel, ch)
		if e, live := r.byID[id]; live && e.ch == ch {
			delete(r.byID, id)
		}
	}
	size := len(r.byID)
	r.mu.Unlock()
	observability.ConnectionsActive.Set(float64(size))
}
