package voice

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/internal/orders"
	"github.com/mesa-pos/mesa-backend/pkg/enums"
)

// Session tracks flow-control accounting and the draft order for one voice
// attempt. It lives only as long as its connection.
type Session struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	ConnectionID uuid.UUID

	bufferCap int

	mu          sync.Mutex
	state       enums.AudioSessionState
	lastSeq     int64
	inFlight    int
	buffered    int
	bytesTotal  int64
	overrunSent bool
	lastChunkAt time.Time
	tableRef    *string
	draft       []orders.LineItemInput
	orderID     *uuid.UUID
}

func newSession(tenantID, connectionID uuid.UUID, bufferCap int) *Session {
	return &Session{
		ID:           uuid.New(),
		TenantID:     tenantID,
		ConnectionID: connectionID,
		bufferCap:    bufferCap,
		state:        enums.AudioSessionStateActive,
		lastChunkAt:  time.Now(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() enums.AudioSessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// maxPendingChunks caps chunks admitted but not yet processed. It also
// sizes the processing queue, so an admitted chunk always has a slot.
const maxPendingChunks = 32

// chunkOutcome is the flow-control decision for one inbound chunk.
type chunkOutcome int

const (
	chunkAccepted chunkOutcome = iota
	chunkDroppedSignal
	chunkDroppedSilent
	chunkRejectedClosed
)

// BeginChunk admits one chunk into the session buffer. A chunk that would
// push the buffer past its hard byte cap, or that arrives with
// maxPendingChunks already awaiting processing, is dropped; the first drop
// of a breach episode asks for an overrun signal, later drops stay silent
// until the session falls back under both limits. The session itself stays
// open either way.
func (s *Session) BeginChunk(seq int64, size int) chunkOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != enums.AudioSessionStateActive {
		return chunkRejectedClosed
	}
	s.lastChunkAt = time.Now()
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
	if s.buffered+size > s.bufferCap || s.inFlight >= maxPendingChunks {
		if s.overrunSent {
			return chunkDroppedSilent
		}
		s.overrunSent = true
		return chunkDroppedSignal
	}
	s.buffered += size
	s.inFlight++
	return chunkAccepted
}

// CompleteChunk releases an admitted chunk's buffer space and returns the
// running byte total for the progress acknowledgement.
func (s *Session) CompleteChunk(size int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffered -= size
	if s.buffered < 0 {
		s.buffered = 0
	}
	if s.inFlight > 0 {
		s.inFlight--
	}
	if s.buffered < s.bufferCap && s.inFlight < maxPendingChunks {
		s.overrunSent = false
	}
	s.bytesTotal += int64(size)
	return s.bytesTotal
}

// InFlight reports chunks admitted but not yet acknowledged.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// IdleFor reports how long the session has gone without a chunk.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastChunkAt)
}

// Drain stops admitting chunks while the final NLU result is pending.
func (s *Session) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == enums.AudioSessionStateActive {
		s.state = enums.AudioSessionStateDraining
	}
}

// Close releases the session's buffers and marks it closed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = enums.AudioSessionStateClosed
	s.buffered = 0
	s.inFlight = 0
	s.draft = nil
}

// AddItem appends a line item to the draft order.
func (s *Session) AddItem(item orders.LineItemInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = append(s.draft, item)
}

// RemoveItem drops the most recent draft line matching the catalog ref and
// reports whether anything was removed.
func (s *Session) RemoveItem(catalogRef string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.draft) - 1; i >= 0; i-- {
		if s.draft[i].CatalogRef == catalogRef {
			s.draft = append(s.draft[:i], s.draft[i+1:]...)
			return true
		}
	}
	return false
}

// DraftItems returns a copy of the accumulated draft lines.
func (s *Session) DraftItems() []orders.LineItemInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]orders.LineItemInput, len(s.draft))
	copy(items, s.draft)
	return items
}

// ClearDraft discards the draft lines without closing the session.
func (s *Session) ClearDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
}

// SetTableRef records the seat or table the speaker named.
func (s *Session) SetTableRef(ref *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref != nil {
		s.tableRef = ref
	}
}

// TableRef returns the recorded table reference, if any.
func (s *Session) TableRef() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tableRef
}

// SetOrderID records the committed order once the draft is confirmed.
func (s *Session) SetOrderID(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderID = &id
}

// OrderID returns the committed order id, or nil before confirmation.
func (s *Session) OrderID() *uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderID
}
