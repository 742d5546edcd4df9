package hub

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mesa-pos/mesa-backend/pkg/config"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
)

type fakeSocket struct {
	mu          sync.Mutex
	frames      []Event
	pings       int
	closed      bool
	pongHandler func(string) error
	writeErr    error
	readUnblock chan struct{}
	closeOnce   sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{readUnblock: make(chan struct{})}
}

func (f *fakeSocket) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if event, ok := v.(Event); ok {
		f.frames = append(f.frames, event)
	}
	return nil
}

func (f *fakeSocket) WriteControl(messageType int, _ []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.PingMessage {
		f.pings++
	}
	return nil
}

func (f *fakeSocket) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeSocket) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pongHandler = h
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	<-f.readUnblock
	return 0, nil, io.EOF
}

func (f *fakeSocket) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.readUnblock)
	})
	return nil
}

func (f *fakeSocket) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeSocket) pong() {
	f.mu.Lock()
	handler := f.pongHandler
	f.mu.Unlock()
	if handler != nil {
		_ = handler("")
	}
}

func testHubConfig() config.HubConfig {
	return config.HubConfig{
		HeartbeatInterval: 30 * time.Second,
		HeartbeatMisses:   2,
		SendQueueSize:     32,
		WriteTimeout:      time.Second,
	}
}

func newTestHub(cfg config.HubConfig) *Hub {
	logg := logger.New(logger.Options{
		ServiceName: "hub-test",
		Output:      io.Discard,
	})
	return NewHub(cfg, logg, nil)
}

func testEvent(tenantID uuid.UUID, sequence int64) Event {
	return Event{
		Sequence:   sequence,
		TenantID:   tenantID,
		EventType:  "order_status_changed",
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{"status":"preparing"}`),
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPublishReachesOnlySubscribedTenant(t *testing.T) {
	h := newTestHub(testHubConfig())
	tenantT := uuid.New()
	tenantU := uuid.New()

	first := h.Register(tenantT, nil, newFakeSocket())
	second := h.Register(tenantT, nil, newFakeSocket())
	other := h.Register(tenantU, nil, newFakeSocket())

	delivered := h.Publish(tenantT, testEvent(tenantT, 1))
	if delivered != 2 {
		t.Fatalf("delivered = %d, want 2", delivered)
	}
	if len(first.queue) != 1 || len(second.queue) != 1 {
		t.Fatalf("tenant T queues = %d, %d, want 1 each", len(first.queue), len(second.queue))
	}
	if len(other.queue) != 0 {
		t.Fatalf("tenant U connection observed a tenant T event")
	}
}

func TestPublishDeliversInSequenceOrder(t *testing.T) {
	h := newTestHub(testHubConfig())
	tenantID := uuid.New()
	conn := h.Register(tenantID, nil, newFakeSocket())

	for seq := int64(1); seq <= 5; seq++ {
		h.Publish(tenantID, testEvent(tenantID, seq))
	}
	for want := int64(1); want <= 5; want++ {
		event := <-conn.queue
		if event.Sequence != want {
			t.Fatalf("sequence = %d, want %d", event.Sequence, want)
		}
	}
}

func TestPublishEvictsConnectionWithFullQueue(t *testing.T) {
	cfg := testHubConfig()
	cfg.SendQueueSize = 1
	h := newTestHub(cfg)
	tenantID := uuid.New()

	slow := h.Register(tenantID, nil, newFakeSocket())
	healthy := h.Register(tenantID, nil, newFakeSocket())
	// Drain the healthy queue so it never fills.
	go func() {
		for range healthy.queue {
		}
	}()

	h.Publish(tenantID, testEvent(tenantID, 1))
	delivered := h.Publish(tenantID, testEvent(tenantID, 2))

	if delivered != 1 {
		t.Fatalf("delivered = %d, want only the healthy connection", delivered)
	}
	if slow.Active() {
		t.Fatalf("expected slow connection to be evicted")
	}
	if got := h.ConnectionCount(tenantID); got != 1 {
		t.Fatalf("connection count = %d, want 1", got)
	}
}

func TestPublishSkipsEvictedConnection(t *testing.T) {
	h := newTestHub(testHubConfig())
	tenantID := uuid.New()
	conn := h.Register(tenantID, nil, newFakeSocket())

	h.Evict(conn, "revoked")
	delivered := h.Publish(tenantID, testEvent(tenantID, 1))

	if delivered != 0 {
		t.Fatalf("delivered = %d, want 0 after eviction", delivered)
	}
	if len(conn.queue) != 0 {
		t.Fatalf("evicted connection received an event")
	}
}

func TestServeWritesQueuedEventsToSocket(t *testing.T) {
	h := newTestHub(testHubConfig())
	tenantID := uuid.New()
	sock := newFakeSocket()
	conn := h.Register(tenantID, nil, sock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Serve(context.Background(), conn)
	}()

	h.Publish(tenantID, testEvent(tenantID, 1))
	h.Publish(tenantID, testEvent(tenantID, 2))
	waitFor(t, "frames to be written", func() bool { return sock.frameCount() == 2 })

	sock.mu.Lock()
	first, second := sock.frames[0], sock.frames[1]
	sock.mu.Unlock()
	if first.Sequence != 1 || second.Sequence != 2 {
		t.Fatalf("frames out of order: %d, %d", first.Sequence, second.Sequence)
	}

	h.Unregister(conn)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not return after unregister")
	}
}

func TestServeEvictsAfterMissedHeartbeats(t *testing.T) {
	cfg := testHubConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	h := newTestHub(cfg)
	tenantID := uuid.New()
	sock := newFakeSocket()
	conn := h.Register(tenantID, nil, sock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Serve(context.Background(), conn)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not evict the silent connection")
	}
	if conn.Active() {
		t.Fatalf("connection still active after missed heartbeats")
	}
	sock.mu.Lock()
	closed := sock.closed
	sock.mu.Unlock()
	if !closed {
		t.Fatalf("socket not closed on eviction")
	}
}

func TestServeKeepsRespondingConnectionAlive(t *testing.T) {
	cfg := testHubConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	h := newTestHub(cfg)
	tenantID := uuid.New()
	sock := newFakeSocket()
	conn := h.Register(tenantID, nil, sock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Serve(context.Background(), conn)
	}()

	// Answer pings for a few heartbeat windows.
	for i := 0; i < 10; i++ {
		sock.pong()
		time.Sleep(cfg.HeartbeatInterval / 2)
	}
	select {
	case <-done:
		t.Fatalf("responding connection was evicted")
	default:
	}
	if !conn.Active() {
		t.Fatalf("responding connection marked inactive")
	}
	h.Unregister(conn)
	<-done
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := newTestHub(testHubConfig())
	tenantID := uuid.New()
	conn := h.Register(tenantID, nil, newFakeSocket())

	h.Unregister(conn)
	h.Unregister(conn)
	h.Evict(conn, "revoked")

	if got := h.ConnectionCount(tenantID); got != 0 {
		t.Fatalf("connection count = %d, want 0", got)
	}
}
