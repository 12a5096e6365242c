package notify

// Capacity is how many unlocks can wait for transmission.
const Capacity = 5

// Queue is a bounded FIFO of achievement ids. Enqueue refuses when full instead of blocking
// because it is called from inside the engine's frame evaluation.
type Queue struct {
	buf   [Capacity]uint32
	head  int
	tail  int
	count int

	dropped uint64
}

func (q *Queue) Len() int      { return q.count }
func (q *Queue) IsEmpty() bool { return q.count == 0 }
func (q *Queue) IsFull() bool  { return q.count == Capacity }

// Dropped counts ids refused because the queue was full.
func (q *Queue) Dropped() uint64 { return q.dropped }

func (q *Queue) Enqueue(id uint32) bool {
	if q.IsFull() {
		q.dropped++
		return false
	}
	q.buf[q.tail] = id
	q.tail = (q.tail + 1) % Capacity
	q.count++
	return true
}

func (q *Queue) Dequeue() (id uint32, ok bool) {
	if q.IsEmpty() {
		return 0, false
	}
	id = q.buf[q.head]
	q.head = (q.head + 1) % Capacity
	q.count--
	return id, true
}

// Reset empties the queue.
func (q *Queue) Reset() {
	*q = Queue{}
}

// Pending returns the queued ids oldest first.
func (q *Queue) Pending() []uint32 {
	ids := make([]uint32, 0, q.count)
	for i, j := 0, q.head; i < q.count; i, j = i+1, (j+1)%Capacity {
		ids = append(ids, q.buf[j])
	}
	return ids
}
