package session

import (
	"sync"

	"github.com/ziadkadry99/medisur/internal/metrics"
)

// Registry maps conversation ids to their active channel.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// Register makes ch the active channel for id and returns the channel it
// replaced, if any.
func (r *Registry) Register(id string, ch *Channel) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.channels[id]
	r.channels[id] = ch
	metrics.ActiveChannels.Set(float64(len(r.channels)))
	return prev
}

// Unregister removes id only while ch is still its active channel, so a
// replaced channel cannot evict its successor.
func (r *Registry) Unregister(id string, ch *Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channels[id] != ch {
		return false
	}
	delete(r.channels, id)
	metrics.ActiveChannels.Set(float64(len(r.channels)))
	return true
}

// Get returns the active channel for id, or nil.
func (r *Registry) Get(id string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[id]
}

// Len returns the number of active channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// CloseAll closes every active channel.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.Lock()
	open := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		open = append(open, ch)
	}
	r.mu.Unlock()

	for _, ch := range open {
		ch.Close(code, reason)
	}
}
