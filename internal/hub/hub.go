package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mesa-pos/mesa-backend/pkg/config"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
	"github.com/mesa-pos/mesa-backend/pkg/metrics"
)

const (
	defaultQueueSize         = 32
	defaultHeartbeatInterval = 30 * time.Second
	defaultHeartbeatMisses   = 2
	defaultWriteTimeout      = 10 * time.Second

	// Eviction reasons reported to metrics.
	reasonHeartbeat    = "heartbeat"
	reasonBackpressure = "backpressure"
	reasonWriteFailure = "write_failure"
	reasonRevoked      = "revoked"
)

// Hub keeps the registry of live stream connections grouped by tenant and
// fans committed domain events out to every active connection in a group.
// Groups carry their own lock so tenants never contend with each other.
type Hub struct {
	cfg     config.HubConfig
	logg    *logger.Logger
	metrics *metrics.StreamMetrics

	mu     sync.RWMutex
	groups map[uuid.UUID]*tenantGroup
}

type tenantGroup struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Connection
}

// NewHub builds the broadcast hub. Metrics may be nil.
func NewHub(cfg config.HubConfig, logg *logger.Logger, m *metrics.StreamMetrics) *Hub {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = defaultQueueSize
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.HeartbeatMisses <= 0 {
		cfg.HeartbeatMisses = defaultHeartbeatMisses
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Hub{
		cfg:     cfg,
		logg:    logg,
		metrics: m,
		groups:  make(map[uuid.UUID]*tenantGroup),
	}
}

// Register admits a connection into its tenant group. Token validation
// happens upstream; the hub only tracks already-authenticated attachments.
func (h *Hub) Register(tenantID uuid.UUID, scopes []string, sock socket) *Connection {
	conn := newConnection(tenantID, scopes, sock, h.cfg.SendQueueSize)

	h.mu.Lock()
	group, ok := h.groups[tenantID]
	if !ok {
		group = &tenantGroup{conns: make(map[uuid.UUID]*Connection)}
		h.groups[tenantID] = group
	}
	h.mu.Unlock()

	group.mu.Lock()
	group.conns[conn.ID] = conn
	group.mu.Unlock()

	h.metrics.ConnectionOpened(tenantID.String())
	return conn
}

// Unregister removes a connection after a graceful close.
func (h *Hub) Unregister(conn *Connection) {
	h.remove(conn, "")
}

// Evict force-closes a connection, for example when its capability token is
// revoked or its tenant is deactivated.
func (h *Hub) Evict(conn *Connection, reason string) {
	h.remove(conn, reason)
}

func (h *Hub) remove(conn *Connection, reason string) {
	if conn == nil {
		return
	}
	wasActive := conn.Active()
	conn.shutdown()

	h.mu.RLock()
	group := h.groups[conn.TenantID]
	h.mu.RUnlock()
	if group != nil {
		group.mu.Lock()
		_, present := group.conns[conn.ID]
		delete(group.conns, conn.ID)
		group.mu.Unlock()
		if present {
			h.metrics.ConnectionClosed(conn.TenantID.String())
		}
	}
	if wasActive && reason != "" {
		h.metrics.IncEviction(reason)
	}
}

// Publish delivers the event to every active connection in the tenant group
// and returns the delivered count. A slow consumer never blocks the others:
// enqueue is non-blocking and a full queue means the consumer is treated as
// dead and evicted, which is the backpressure policy for display fan-out.
func (h *Hub) Publish(tenantID uuid.UUID, event Event) int {
	conns := h.snapshot(tenantID)
	delivered := 0
	for _, conn := range conns {
		if !conn.Active() {
			continue
		}
		select {
		case conn.queue <- event:
			delivered++
		default:
			h.metrics.IncDropped(tenantID.String())
			h.Evict(conn, reasonBackpressure)
		}
	}
	if delivered > 0 {
		h.metrics.IncPublished(event.EventType)
	}
	return delivered
}

// ConnectionCount reports the live connections for a tenant.
func (h *Hub) ConnectionCount(tenantID uuid.UUID) int {
	return len(h.snapshot(tenantID))
}

func (h *Hub) snapshot(tenantID uuid.UUID) []*Connection {
	h.mu.RLock()
	group := h.groups[tenantID]
	h.mu.RUnlock()
	if group == nil {
		return nil
	}
	group.mu.RLock()
	defer group.mu.RUnlock()
	conns := make([]*Connection, 0, len(group.conns))
	for _, conn := range group.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Serve pumps queued events to the socket and runs the heartbeat until the
// connection closes. It blocks, so callers run it once per connection.
func (h *Hub) Serve(ctx context.Context, conn *Connection) {
	defer h.Unregister(conn)

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"connection_id": conn.ID.String(),
		"tenant_id":     conn.TenantID.String(),
	})

	readWindow := h.cfg.HeartbeatInterval * time.Duration(h.cfg.HeartbeatMisses+1)
	conn.sock.SetPongHandler(func(string) error {
		conn.markPong()
		return conn.sock.SetReadDeadline(time.Now().Add(readWindow))
	})
	_ = conn.sock.SetReadDeadline(time.Now().Add(readWindow))

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.sock.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case <-readDone:
			return
		case event := <-conn.queue:
			if !conn.Active() {
				return
			}
			if err := h.writeEvent(conn, event); err != nil {
				h.logg.Warn(logCtx, "stream write failed, evicting connection")
				h.Evict(conn, reasonWriteFailure)
				return
			}
		case <-ticker.C:
			if conn.sincePong() > h.cfg.HeartbeatInterval*time.Duration(h.cfg.HeartbeatMisses) {
				h.logg.Warn(logCtx, "connection missed heartbeats, evicting")
				h.Evict(conn, reasonHeartbeat)
				return
			}
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.sock.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				h.Evict(conn, reasonWriteFailure)
				return
			}
		}
	}
}

func (h *Hub) writeEvent(conn *Connection, event Event) error {
	if err := conn.sock.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.sock.WriteJSON(event)
}
