// Package tsfleet is a minimal stand-in for the tablet server fleet
// manager collaborator that sits external to the catalog
// manager's scope ("provides live-server descriptors, RPC proxies, load
// stats"). It tracks the descriptors tablet servers report over a
// heartbeat call so the Assignment Engine has a TSDescriptorsFunc to
// call, without reimplementing the fleet manager itself.
package tsfleet

import (
	"sync"
	"time"

	"github.com/cuemby/catalogd/pkg/types"
)

// staleAfter is how long a tablet server may go without a heartbeat
// before Live() stops reporting it.
const staleAfter = 30 * time.Second

type entry struct {
	desc     types.TSDescriptor
	lastSeen time.Time
}

// Registry tracks the last-reported descriptor for each live tablet
// server.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]entry
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{servers: make(map[string]entry)}
}

// Heartbeat records desc as the tablet server's current state.
func (r *Registry) Heartbeat(desc types.TSDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[desc.ServerID] = entry{desc: desc, lastSeen: time.Now()}
}

// Live returns the descriptors of every tablet server heard from within
// staleAfter. It satisfies catalog.TSDescriptorsFunc.
func (r *Registry) Live() []types.TSDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff := time.Now().Add(-staleAfter)
	live := make([]types.TSDescriptor, 0, len(r.servers))
	for _, e := range r.servers {
		if e.lastSeen.After(cutoff) {
			live = append(live, e.desc)
		}
	}
	return live
}
