package voice

import "sync"

// CreditWindow is the client-side leaky bucket gating audio sends. At most
// limit chunks may be unacknowledged; further chunks are queued, never
// dropped. Each progress acknowledgement releases one queued chunk.
type CreditWindow struct {
	mu       sync.Mutex
	limit    int
	inFlight int
	queue    [][]byte
}

// NewCreditWindow builds a window with the given credit limit.
func NewCreditWindow(limit int) *CreditWindow {
	if limit <= 0 {
		limit = 1
	}
	return &CreditWindow{limit: limit}
}

// Offer submits a chunk for sending. It returns true when the chunk may be
// sent immediately; otherwise the chunk is queued until an ack frees a
// credit.
func (w *CreditWindow) Offer(chunk []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight < w.limit {
		w.inFlight++
		return true
	}
	w.queue = append(w.queue, chunk)
	return false
}

// Ack consumes one progress acknowledgement and returns the queued chunk
// released by the freed credit, or nil when nothing is waiting.
func (w *CreditWindow) Ack() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight > 0 {
		w.inFlight--
	}
	if len(w.queue) == 0 {
		return nil
	}
	chunk := w.queue[0]
	w.queue = w.queue[1:]
	w.inFlight++
	return chunk
}

// InFlight reports chunks sent but not yet acknowledged.
func (w *CreditWindow) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

// Queued reports chunks held client-side awaiting a credit.
func (w *CreditWindow) Queued() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}
