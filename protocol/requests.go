package protocol

import (
	"log"
	"time"
)

const (
	DefaultSlots   = 5
	DefaultTimeout = 30 * time.Second
)

type slot[K any] struct {
	id     uint8
	k      K
	sent   time.Time
	active bool
}

// Requests tracks outstanding requests by 8-bit id. Slots are reused
// round-robin; a pending slot that is overwritten is abandoned.
// Requests is not safe for concurrent use.
type Requests[K any] struct {
	slots   []slot[K]
	next    int
	nextID  uint8
	timeout time.Duration

	inFlight     int
	lastDispatch time.Time

	evicted  uint64
	stale    uint64
	timeouts uint64
}

func NewRequests[K any](slots int, timeout time.Duration) *Requests[K] {
	if slots <= 0 {
		slots = DefaultSlots
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Requests[K]{
		slots:   make([]slot[K], slots),
		timeout: timeout,
	}
}

// Begin records a continuation and returns the id to send with the request.
func (r *Requests[K]) Begin(k K, now time.Time) uint8 {
	s := &r.slots[r.next]
	if s.active {
		r.evicted++
		r.release()
		log.Printf("protocol: request %02X abandoned: slot reused\n", s.id)
	}

	id := r.nextID
	*s = slot[K]{id: id, k: k, sent: now, active: true}
	r.next = (r.next + 1) % len(r.slots)
	r.nextID++

	r.inFlight++
	r.lastDispatch = now
	return id
}

// Resolve removes and returns the continuation for id. Responses for ids
// that are not pending are dropped.
func (r *Requests[K]) Resolve(id uint8) (k K, ok bool) {
	for i := range r.slots {
		s := &r.slots[i]
		if !s.active || s.id != id {
			continue
		}
		k = s.k
		*s = slot[K]{}
		r.release()
		return k, true
	}
	r.stale++
	return k, false
}

func (r *Requests[K]) release() {
	if r.inFlight > 0 {
		r.inFlight--
	}
}

// Expire abandons every pending request when nothing was answered within
// the timeout of the most recent dispatch. It reports whether it did so.
func (r *Requests[K]) Expire(now time.Time) bool {
	if r.inFlight == 0 || now.Sub(r.lastDispatch) <= r.timeout {
		return false
	}
	log.Printf("protocol: %d request(s) timed out after %s\n", r.inFlight, now.Sub(r.lastDispatch).Truncate(time.Millisecond))
	r.timeouts++
	r.Reset()
	return true
}

// Reset abandons all pending requests.
func (r *Requests[K]) Reset() {
	for i := range r.slots {
		r.slots[i] = slot[K]{}
	}
	r.inFlight = 0
}

func (r *Requests[K]) InFlight() int { return r.inFlight }

func (r *Requests[K]) LastDispatch() time.Time { return r.lastDispatch }

// Pending lists the ids currently awaiting a response.
func (r *Requests[K]) Pending() []uint8 {
	ids := make([]uint8, 0, len(r.slots))
	for _, s := range r.slots {
		if s.active {
			ids = append(ids, s.id)
		}
	}
	return ids
}

type RequestStats struct {
	InFlight int
	Evicted  uint64
	Stale    uint64
	Timeouts uint64
}

func (r *Requests[K]) Stats() RequestStats {
	return RequestStats{InFlight: r.inFlight, Evicted: r.evicted, Stale: r.stale, Timeouts: r.timeouts}
}
