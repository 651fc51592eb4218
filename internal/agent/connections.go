package agent

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Connections tracks the live chat socket for each session. A session has at
// most one socket; a newer one replaces and closes the older.
type Connections struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewConnections creates an empty connection registry.
func NewConnections() *Connections {
	return &Connections{
		active: make(map[string]*websocket.Conn),
	}
}

// Get returns the live socket for a session.
func (c *Connections) Get(sessionKey string) *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active[sessionKey]
}

// Register records conn as the session's socket.
func (c *Connections) Register(sessionKey string, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.active[sessionKey]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	c.active[sessionKey] = conn
	slog.Info("Chat socket registered", "session_key", sessionKey)
}

// Unregister removes conn if it is still the session's socket.
func (c *Connections) Unregister(sessionKey string, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, exists := c.active[sessionKey]; exists && current == conn {
		delete(c.active, sessionKey)
		slog.Info("Chat socket unregistered", "session_key", sessionKey)
	}
}

// Len returns the number of live sockets.
func (c *Connections) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.active)
}

// CloseAll closes every live socket.
func (c *Connections) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, conn := range c.active {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(c.active, key)
	}
}
