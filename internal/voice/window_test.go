package voice

import (
	"bytes"
	"testing"
)

func TestCreditWindowQueuesBeyondLimit(t *testing.T) {
	window := NewCreditWindow(3)
	chunks := [][]byte{
		[]byte("one"), []byte("two"), []byte("three"), []byte("four"), []byte("five"),
	}

	// Five chunks against a credit limit of three: the first three go out,
	// four and five are held client-side, never dropped.
	for i, chunk := range chunks[:3] {
		if !window.Offer(chunk) {
			t.Fatalf("chunk %d blocked inside the credit window", i+1)
		}
	}
	for i, chunk := range chunks[3:] {
		if window.Offer(chunk) {
			t.Fatalf("chunk %d sent past the credit limit", i+4)
		}
	}
	if window.InFlight() != 3 || window.Queued() != 2 {
		t.Fatalf("in flight = %d queued = %d, want 3 and 2", window.InFlight(), window.Queued())
	}

	// Progress acks for chunks one and two release four and five in order.
	released := window.Ack()
	if !bytes.Equal(released, chunks[3]) {
		t.Fatalf("first ack released %q, want chunk four", released)
	}
	released = window.Ack()
	if !bytes.Equal(released, chunks[4]) {
		t.Fatalf("second ack released %q, want chunk five", released)
	}
	if window.Queued() != 0 {
		t.Fatalf("queue not drained: %d", window.Queued())
	}
	if window.InFlight() != 3 {
		t.Fatalf("in flight = %d, want window still full", window.InFlight())
	}
}

func TestCreditWindowAckWithoutQueue(t *testing.T) {
	window := NewCreditWindow(2)
	window.Offer([]byte("a"))

	if released := window.Ack(); released != nil {
		t.Fatalf("ack released %q with an empty queue", released)
	}
	if window.InFlight() != 0 {
		t.Fatalf("in flight = %d, want 0", window.InFlight())
	}
	// Spurious acks never drive the counter negative.
	if released := window.Ack(); released != nil || window.InFlight() != 0 {
		t.Fatalf("spurious ack corrupted the window")
	}
}
