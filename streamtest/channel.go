package streamtest

import "sync"

// Channel is one open channel connection, keyed by the id the client chose.
type Channel struct {
	ID   string
	Name string
	conn *Conn
}

type channelRegistry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{
		channels: make(map[string]*Channel),
	}
}

func (r *channelRegistry) join(id, name string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels[id] = &Channel{ID: id, Name: name, conn: conn}
}

func (r *channelRegistry) leave(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.channels, id)
}

func (r *channelRegistry) leaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ch := range r.channels {
		if ch.conn.ID() == connID {
			delete(r.channels, id)
		}
	}
}

func (r *channelRegistry) get(id string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, exists := r.channels[id]
	return ch, exists
}

func (r *channelRegistry) snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.channels))
	for id, ch := range r.channels {
		out[id] = ch.Name
	}
	return out
}
