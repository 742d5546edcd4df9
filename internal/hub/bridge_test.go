package hub

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/logger"
	"github.com/mesa-pos/mesa-backend/pkg/outbox"
)

type fakeBroadcaster struct {
	tenants []uuid.UUID
	events  []Event
}

func (f *fakeBroadcaster) Publish(tenantID uuid.UUID, event Event) int {
	f.tenants = append(f.tenants, tenantID)
	f.events = append(f.events, event)
	return 1
}

type fakeDeduper struct {
	seen map[uuid.UUID]bool
	err  error
}

func (f *fakeDeduper) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = make(map[uuid.UUID]bool)
	}
	already := f.seen[eventID]
	f.seen[eventID] = true
	return already, nil
}

func newTestBridge(t *testing.T, hub broadcaster) *Bridge {
	t.Helper()
	logg := logger.New(logger.Options{
		ServiceName: "bridge-test",
		Output:      io.Discard,
	})
	// The subscription is only touched by Run, not by process.
	return &Bridge{hub: hub, dedupe: &fakeDeduper{}, logg: logg}
}

func bridgeMessage(t *testing.T, tenantID uuid.UUID, sequence, eventType string) *pubsub.Message {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		TenantID:   tenantID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{"order_id":"abc"}`),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": eventType,
			"tenant_id":  tenantID.String(),
			"sequence":   sequence,
		},
	}
}

func TestBridgeProcessFansOutEvent(t *testing.T) {
	hub := &fakeBroadcaster{}
	bridge := newTestBridge(t, hub)
	tenantID := uuid.New()

	ok := bridge.process(context.Background(), bridgeMessage(t, tenantID, "42", "order_status_changed"))
	if !ok {
		t.Fatalf("expected message to be fanned out")
	}
	if len(hub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(hub.events))
	}
	event := hub.events[0]
	if hub.tenants[0] != tenantID {
		t.Errorf("published to tenant %s, want %s", hub.tenants[0], tenantID)
	}
	if event.Sequence != 42 {
		t.Errorf("sequence = %d, want 42", event.Sequence)
	}
	if event.EventType != "order_status_changed" {
		t.Errorf("event type = %q", event.EventType)
	}
	if string(event.Data) != `{"order_id":"abc"}` {
		t.Errorf("data = %s", event.Data)
	}
}

func TestBridgeProcessSkipsRedeliveredEvent(t *testing.T) {
	hub := &fakeBroadcaster{}
	bridge := newTestBridge(t, hub)
	msg := bridgeMessage(t, uuid.New(), "7", "order_created")

	if !bridge.process(context.Background(), msg) {
		t.Fatalf("first delivery was not fanned out")
	}
	if bridge.process(context.Background(), msg) {
		t.Fatalf("redelivered event was fanned out")
	}
	if len(hub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(hub.events))
	}
}

func TestBridgeProcessFailsOpenOnDedupeError(t *testing.T) {
	hub := &fakeBroadcaster{}
	bridge := newTestBridge(t, hub)
	bridge.dedupe = &fakeDeduper{err: context.DeadlineExceeded}

	if !bridge.process(context.Background(), bridgeMessage(t, uuid.New(), "3", "order_created")) {
		t.Fatalf("dedupe store outage blocked fan-out")
	}
}

func TestBridgeProcessSkipsUnknownEventType(t *testing.T) {
	hub := &fakeBroadcaster{}
	bridge := newTestBridge(t, hub)

	ok := bridge.process(context.Background(), bridgeMessage(t, uuid.New(), "1", "order_archived"))
	if ok || len(hub.events) != 0 {
		t.Fatalf("unknown event type was fanned out")
	}
}

func TestBridgeProcessSkipsMalformedAttributes(t *testing.T) {
	hub := &fakeBroadcaster{}
	bridge := newTestBridge(t, hub)
	tenantID := uuid.New()

	missingTenant := bridgeMessage(t, tenantID, "1", "order_created")
	missingTenant.Attributes["tenant_id"] = "not-a-uuid"
	if bridge.process(context.Background(), missingTenant) {
		t.Fatalf("message without valid tenant_id was fanned out")
	}

	missingSeq := bridgeMessage(t, tenantID, "1", "order_created")
	delete(missingSeq.Attributes, "sequence")
	if bridge.process(context.Background(), missingSeq) {
		t.Fatalf("message without sequence was fanned out")
	}

	badEnvelope := bridgeMessage(t, tenantID, "1", "order_created")
	badEnvelope.Data = []byte("{")
	if bridge.process(context.Background(), badEnvelope) {
		t.Fatalf("message with malformed envelope was fanned out")
	}

	if len(hub.events) != 0 {
		t.Fatalf("malformed messages reached the hub")
	}
}
