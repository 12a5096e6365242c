package xcore

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func drain(r Receiver) []Event {
	var got []Event
	for e, ok := r.Pop(); ok; e, ok = r.Pop() {
		got = append(got, e)
	}
	return got
}

func ev(i int) Event { return Event{Address: uint16(i), Data: uint8(i)} }

func TestChannel_FIFO(t *testing.T) {
	c := New(4)
	tx, rx := c.Sender(), c.Receiver()

	if _, ok := rx.Pop(); ok {
		t.Fatal("Pop() on empty channel succeeded")
	}
	for i := 1; i <= 3; i++ {
		tx.Push(ev(i))
	}
	if actual, expected := rx.Len(), 3; actual != expected {
		t.Errorf("Len, actual = %d, expected = %d", actual, expected)
	}
	if diff := cmp.Diff([]Event{ev(1), ev(2), ev(3)}, drain(rx)); diff != "" {
		t.Errorf("events mismatch (-expected +actual):\n%s", diff)
	}
	if actual, expected := rx.Len(), 0; actual != expected {
		t.Errorf("Len after drain, actual = %d, expected = %d", actual, expected)
	}
}

func TestChannel_DropOldest(t *testing.T) {
	c := New(4)
	tx, rx := c.Sender(), c.Receiver()

	for i := 0; i < 6; i++ {
		tx.Push(ev(i))
	}
	if actual, expected := rx.Len(), 4; actual != expected {
		t.Errorf("Len, actual = %d, expected = %d", actual, expected)
	}
	if actual, expected := rx.Dropped(), uint64(2); actual != expected {
		t.Errorf("Dropped, actual = %d, expected = %d", actual, expected)
	}
	if diff := cmp.Diff([]Event{ev(2), ev(3), ev(4), ev(5)}, drain(rx)); diff != "" {
		t.Errorf("events mismatch (-expected +actual):\n%s", diff)
	}
}

func TestChannel_Drain(t *testing.T) {
	c := New(8)
	tx, rx := c.Sender(), c.Receiver()
	for i := 0; i < 10; i++ {
		tx.Push(ev(i))
	}
	rx.Drain()
	if _, ok := rx.Pop(); ok {
		t.Error("Pop() after Drain succeeded")
	}
	if actual, expected := rx.Dropped(), uint64(0); actual != expected {
		t.Errorf("Dropped after Drain, actual = %d, expected = %d", actual, expected)
	}
	tx.Push(ev(42))
	if diff := cmp.Diff([]Event{ev(42)}, drain(rx)); diff != "" {
		t.Errorf("events mismatch (-expected +actual):\n%s", diff)
	}
}

// TestChannel_Concurrent checks that a consumer racing a faster producer
// sees events in capture order and that every event is either delivered or
// counted as dropped.
func TestChannel_Concurrent(t *testing.T) {
	const n = 1 << 18
	c := New(64)
	tx, rx := c.Sender(), c.Receiver()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			// 24 bits of sequence number spread over address and data
			tx.Push(Event{Address: uint16(i >> 8), Data: uint8(i)})
		}
		close(done)
	}()

	last, received := 0, 0
	check := func(e Event) {
		seq := int(e.Address)<<8 | int(e.Data)
		if seq <= last {
			t.Fatalf("out of order: %d after %d", seq, last)
		}
		last = seq
		received++
	}
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		if e, ok := rx.Pop(); ok {
			check(e)
		}
	}
	wg.Wait()
	for _, e := range drain(rx) {
		check(e)
	}

	if actual, expected := uint64(received)+rx.Dropped(), uint64(n); actual != expected {
		t.Errorf("received+dropped, actual = %d, expected = %d", actual, expected)
	}
	if actual, expected := last, n; actual != expected {
		t.Errorf("last sequence, actual = %d, expected = %d", actual, expected)
	}
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(0) did not panic")
		}
	}()
	New(0)
}

func TestChannel_FullCapacityOverflow(t *testing.T) {
	c := New(DefaultCapacity)
	tx, rx := c.Sender(), c.Receiver()

	for i := 0; i <= DefaultCapacity; i++ {
		tx.Push(Event{Address: uint16(i), Data: uint8(i)})
		if n := rx.Len(); n > DefaultCapacity {
			t.Fatalf("Len() = %d after %d pushes", n, i+1)
		}
	}
	if actual, expected := rx.Len(), DefaultCapacity; actual != expected {
		t.Errorf("Len, actual = %d, expected = %d", actual, expected)
	}
	if e, _ := rx.Pop(); e.Address != 1 {
		t.Errorf("front after overflow, actual = %d, expected = 1", e.Address)
	}
}
