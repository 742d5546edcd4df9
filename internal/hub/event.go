package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the frame fanned out to stream connections. Sequence numbers are
// monotonic per tenant so clients can detect gaps after a reconnect and
// request a resynchronization read instead of trusting partial delivery.
type Event struct {
	Sequence   int64           `json:"sequence"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}
