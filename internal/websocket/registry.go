package websocket

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maintains the set of open client connections. It only tracks
// membership; it never reads from or writes to a connection.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Add registers a client
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.id] = c
	count := len(r.clients)
	r.mu.Unlock()

	r.logger.Info("Client registered",
		zap.String("connectionID", c.id),
		zap.Int("activeConnections", count))
}

// Remove unregisters a client. Removing a client that is not registered is a
// no-op and reports false.
func (r *Registry) Remove(c *Client) bool {
	r.mu.Lock()
	_, ok := r.clients[c.id]
	if ok {
		delete(r.clients, c.id)
	}
	count := len(r.clients)
	r.mu.Unlock()

	if ok {
		r.logger.Info("Client unregistered",
			zap.String("connectionID", c.id),
			zap.Int("activeConnections", count))
	}
	return ok
}

// Count returns the number of registered clients
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// IDs returns the registered connection IDs in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
