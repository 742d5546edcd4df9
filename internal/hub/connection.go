package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// socket is the subset of *websocket.Conn the hub writes through. Tests
// substitute an in-memory implementation.
type socket interface {
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	ReadMessage() (int, []byte, error)
	Close() error
}

// Connection is one live device attachment. It is owned exclusively by the
// hub; other components reach subscribers only through tenant-group fan-out.
type Connection struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Scopes   []string

	sock      socket
	queue     chan Event
	active    atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
	lastPong  atomic.Int64
}

func newConnection(tenantID uuid.UUID, scopes []string, sock socket, queueSize int) *Connection {
	conn := &Connection{
		ID:       uuid.New(),
		TenantID: tenantID,
		Scopes:   scopes,
		sock:     sock,
		queue:    make(chan Event, queueSize),
		closed:   make(chan struct{}),
	}
	conn.active.Store(true)
	conn.lastPong.Store(time.Now().UnixNano())
	return conn
}

// Active reports whether the connection may still receive events. The flag
// is checked before every enqueue and every write, not once at subscribe
// time, so no publish reaches an evicted connection even if in flight.
func (c *Connection) Active() bool {
	return c.active.Load()
}

// Done is closed when the connection is shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}

func (c *Connection) markPong() {
	c.lastPong.Store(time.Now().UnixNano())
}

func (c *Connection) sincePong() time.Duration {
	return time.Since(time.Unix(0, c.lastPong.Load()))
}

func (c *Connection) shutdown() {
	c.closeOnce.Do(func() {
		c.active.Store(false)
		close(c.closed)
		_ = c.sock.Close()
	})
}
