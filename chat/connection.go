// Package chat implements the real-time chat server: a
// WebSocket hub, message ingestion against the Redis-first durability
// pipeline, a background persistence worker, and channel operations.
package chat

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Connection wraps a *websocket.Conn with separate read/write mutexes so a
// broadcast goroutine and the connection's own read loop never interleave
// frames on the wire; gorilla/websocket requires at most one concurrent
// reader and one concurrent writer per connection.
type Connection struct {
	ws   *websocket.Conn
	rmux sync.Mutex
	wmux sync.Mutex

	userID uint
}

func newConnection(ws *websocket.Conn, userID uint) *Connection {
	return &Connection{ws: ws, userID: userID}
}

// WriteJSON serializes v under the write lock, safe for concurrent callers
// broadcasting to the same connection.
func (c *Connection) WriteJSON(v any) error {
	c.wmux.Lock()
	defer c.wmux.Unlock()
	return c.ws.WriteJSON(v)
}

// ReadJSON deserializes the next frame under the read lock; only the
// connection's own read loop goroutine should call this.
func (c *Connection) ReadJSON(v any) error {
	c.rmux.Lock()
	defer c.rmux.Unlock()
	return c.ws.ReadJSON(v)
}

// Close closes the underlying socket once; safe to call more than once.
func (c *Connection) Close() error {
	c.wmux.Lock()
	defer c.wmux.Unlock()
	return c.ws.Close()
}
