package progress

import "sync"

// Registry tracks the channels of in-flight requests so they can all be
// closed on shutdown.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

func (r *Registry) Register(id string, ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[id] = ch
}

func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// CloseAll closes and forgets every registered channel, returning how many
// were open.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	chans := make([]*Channel, 0, len(r.channels))
	for id, ch := range r.channels {
		chans = append(chans, ch)
		delete(r.channels, id)
	}
	r.mu.Unlock()

	for _, ch := range chans {
		_ = ch.Close()
	}
	return len(chans)
}
