package transport

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecvQueue_FIFOOrder(t *testing.T) {
	q := newRecvQueue(0)

	chunks := [][]byte{{0x01}, {0x02, 0x03}, {0x04}}
	for _, c := range chunks {
		if !q.push(c) {
			t.Fatalf("push(%v) reported a full queue", c)
		}
	}

	if q.len() != len(chunks) {
		t.Errorf("len() want = %d, got = %d", len(chunks), q.len())
	}

	var popped [][]byte
	for {
		msg, ok := q.pop()
		if !ok {
			break
		}
		popped = append(popped, msg)
	}

	if diff := cmp.Diff(chunks, popped); diff != "" {
		t.Errorf("queue reordered or dropped messages; diff:\n%s", diff)
	}
}

func TestRecvQueue_PopEmpty(t *testing.T) {
	q := newRecvQueue(0)

	if msg, ok := q.pop(); ok {
		t.Errorf("pop() on empty queue returned %v", msg)
	}
}

func TestRecvQueue_Clear(t *testing.T) {
	q := newRecvQueue(0)
	q.push([]byte{0x01})
	q.push([]byte{0x02})

	q.clear()

	if q.len() != 0 {
		t.Errorf("len() after clear() want = 0, got = %d", q.len())
	}

	// Arrivals after a clear are queued as usual.
	q.push([]byte{0x03})
	msg, ok := q.pop()
	if !ok || msg[0] != 0x03 {
		t.Errorf("pop() after clear() want = [0x03], got = %v (ok=%v)", msg, ok)
	}
}

func TestRecvQueue_CapacityDropsNewArrivals(t *testing.T) {
	q := newRecvQueue(2)

	if !q.push([]byte{0x01}) || !q.push([]byte{0x02}) {
		t.Fatal("pushes below capacity should succeed")
	}
	if q.push([]byte{0x03}) {
		t.Error("push above capacity should report a full queue")
	}

	// The queued messages are untouched by the dropped arrival.
	first, _ := q.pop()
	second, _ := q.pop()
	if first[0] != 0x01 || second[0] != 0x02 {
		t.Errorf("queue contents disturbed by overflow: got %v, %v", first, second)
	}

	// Draining frees capacity again.
	if !q.push([]byte{0x04}) {
		t.Error("push after draining should succeed")
	}
}

func TestRecvQueue_PushSignalsArrival(t *testing.T) {
	q := newRecvQueue(0)
	q.push([]byte{0x01})

	select {
	case <-q.wait():
	default:
		t.Error("push did not pulse the arrival channel")
	}
}
