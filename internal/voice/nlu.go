package voice

import (
	"context"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/internal/orders"
)

// DeltaAction names a structured order mutation produced by the NLU
// collaborator.
type DeltaAction string

const (
	DeltaAddItem      DeltaAction = "add_item"
	DeltaRemoveItem   DeltaAction = "remove_item"
	DeltaConfirmOrder DeltaAction = "confirm_order"
	DeltaCancelOrder  DeltaAction = "cancel_order"
)

// OrderDelta is an unambiguous mutation extracted from speech. Partial or
// ambiguous understanding surfaces as a clarification instead; no order
// call is made until a delta arrives.
type OrderDelta struct {
	Action   DeltaAction
	Item     *orders.LineItemInput
	TableRef *string
}

// Result is what the NLU collaborator returns for a slice of audio.
type Result struct {
	Transcript    string
	Clarification string
	Delta         *OrderDelta
}

// AudioInput tags raw audio bytes with their session context.
type AudioInput struct {
	SessionID uuid.UUID
	TenantID  uuid.UUID
	Seq       int64
	Data      []byte
}

// Recognizer is the transcription/NLU collaborator. Implementations run a
// speech backend; this core only consumes its structured output.
type Recognizer interface {
	ProcessAudio(ctx context.Context, input AudioInput) (*Result, error)
	Finalize(ctx context.Context, sessionID uuid.UUID) (*Result, error)
}
