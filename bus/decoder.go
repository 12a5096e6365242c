package bus

// Decoder detects stable writes across a continuous stream of bus words.
// A write to X is committed only when the next sample shows a different address while the
// previous sample was flagged as a write; this filters address settling and half cycles.
//
// The zero value starts as if the bus had been idle on a read.
type Decoder struct {
	last    Sample
	primed  bool
	Watched func(address uint16) bool
	Emit    func(address uint16, data uint8)
}

// Feed decodes words in capture order; decoder state carries over between calls so a write
// that straddles two DMA buffers is still detected.
func (d *Decoder) Feed(words []uint32) (emitted int) {
	last := d.last
	primed := d.primed
	for _, w := range words {
		s := Decode(w)
		if primed && s.Address != last.Address && !last.Read {
			if d.Watched == nil || d.Watched(last.Address) {
				if d.Emit != nil {
					d.Emit(last.Address, last.Data)
				}
				emitted++
			}
		}
		last = s
		primed = true
	}
	d.last = last
	d.primed = primed
	return
}

func (d *Decoder) Reset() {
	d.last = Sample{}
	d.primed = false
}
