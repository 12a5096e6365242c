// Package registry tracks the bus addresses the achievement logic depends on and mirrors the
// last value written to each of them.
package registry

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

const (
	// MirrorEnd is the last address of the mirrored internal RAM region ($0000-$1FFF).
	MirrorEnd = 0x1FFF
	// RAMSize is the size of the console's internal RAM; $0800-$1FFF mirror $0000-$07FF.
	RAMSize = 0x0800

	// FrameSentinel is OAMDMA ($4014). Games write it once per frame to upload sprites, which makes
	// it a cheap frame clock.
	FrameSentinel = 0x4014
)

// Fold maps mirrored internal RAM addresses into $0000-$07FF and leaves everything else alone.
func Fold(address uint32) uint32 {
	if address <= MirrorEnd {
		return address & (RAMSize - 1)
	}
	return address
}

// Registry is built once per game session: addresses are recorded during discovery, then Finalize
// sorts them and allocates the snapshot. After Finalize the address set is immutable.
type Registry struct {
	addrs []uint16
	data  []byte

	finalized bool
}

func New() *Registry {
	return &Registry{}
}

// Record adds every byte address of the read [address, address+size) that is not already present.
func (r *Registry) Record(address uint32, size uint32) {
	if r.finalized {
		return
	}
	for j := uint32(0); j < size; j++ {
		a := Fold(address + j)
		if a > 0xFFFF {
			continue
		}
		r.add(uint16(a))
	}
}

func (r *Registry) add(a uint16) bool {
	// the set is tens to low hundreds of entries; a scan is fine during discovery.
	for _, x := range r.addrs {
		if x == a {
			return false
		}
	}
	r.addrs = append(r.addrs, a)
	return true
}

// Finalize appends the frame sentinel, sorts the set and allocates a zeroed snapshot.
func (r *Registry) Finalize() WatchSet {
	if !r.finalized {
		if r.add(FrameSentinel) {
			log.Printf("registry: add frame sentinel $%04x\n", FrameSentinel)
		}
		sort.Slice(r.addrs, func(i, j int) bool { return r.addrs[i] < r.addrs[j] })
		r.data = make([]byte, len(r.addrs))
		r.finalized = true
	}
	return WatchSet{addrs: r.addrs}
}

func (r *Registry) Finalized() bool { return r.finalized }

func (r *Registry) Len() int { return len(r.addrs) }

// Addresses returns a copy of the watched set.
func (r *Registry) Addresses() []uint16 {
	a := make([]uint16, len(r.addrs))
	copy(a, r.addrs)
	return a
}

// Index returns the snapshot slot for address.
func (r *Registry) Index(address uint32) (int, bool) {
	if !r.finalized {
		return 0, false
	}
	return WatchSet{addrs: r.addrs}.Index(address)
}

// Store updates the snapshot slot for address; writes to unwatched addresses are ignored.
func (r *Registry) Store(address uint32, value byte) bool {
	i, ok := r.Index(address)
	if !ok {
		return false
	}
	r.data[i] = value
	return true
}

// Snapshot returns the value slot i of the snapshot.
func (r *Registry) Snapshot(i int) byte { return r.data[i] }

// Clear forgets every address and the snapshot.
func (r *Registry) Clear() {
	r.addrs = nil
	r.data = nil
	r.finalized = false
}

func (r *Registry) String() string {
	sb := strings.Builder{}
	for i, a := range r.addrs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(fmt.Sprintf("%03X", a))
	}
	return sb.String()
}

// WatchSet is an immutable, sorted view of the finalized address set. It is safe to share with the
// sampling goroutine.
type WatchSet struct {
	addrs []uint16
}

func (w WatchSet) Len() int { return len(w.addrs) }

// Index binary searches the set for the folded address.
func (w WatchSet) Index(address uint32) (int, bool) {
	address = Fold(address)
	if address > 0xFFFF {
		return 0, false
	}
	a := uint16(address)
	i := sort.Search(len(w.addrs), func(i int) bool { return w.addrs[i] >= a })
	if i < len(w.addrs) && w.addrs[i] == a {
		return i, true
	}
	return 0, false
}

// Contains reports whether a raw 15-bit bus address is watched.
func (w WatchSet) Contains(address uint16) bool {
	_, ok := w.Index(uint32(address))
	return ok
}
