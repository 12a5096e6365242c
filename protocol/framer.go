package protocol

import (
	"errors"
)

// MaxLine is the largest line, terminator included, the framer will buffer.
const MaxLine = 32 * 1024

var ErrLineTooLong = errors.New("protocol: line exceeds buffer")

// Framer accumulates a byte stream into CRLF-terminated lines.
type Framer struct {
	buf []byte
	max int

	// discarding is set after an overflow until the oversized line's CRLF
	discarding bool
	prev       byte

	overflows uint64
}

func NewFramer(max int) *Framer {
	if max <= 2 {
		max = MaxLine
	}
	return &Framer{buf: make([]byte, 0, 256), max: max}
}

// Feed consumes one byte. It returns a complete line without its terminator when one is seen.
// Empty lines are swallowed. On overflow the partial line is discarded, ErrLineTooLong returned,
// and every byte up to and including the next CRLF is dropped.
func (f *Framer) Feed(b byte) (line string, ok bool, err error) {
	if f.discarding {
		if f.prev == '\r' && b == '\n' {
			f.discarding = false
		}
		f.prev = b
		return "", false, nil
	}

	f.buf = append(f.buf, b)
	if n := len(f.buf); n >= f.max {
		terminated := b == '\n' && n >= 2 && f.buf[n-2] == '\r'
		f.Reset()
		f.overflows++
		f.discarding, f.prev = !terminated, b
		return "", false, ErrLineTooLong
	}

	n := len(f.buf)
	if b != '\n' || n < 2 || f.buf[n-2] != '\r' {
		return "", false, nil
	}

	if n == 2 {
		f.Reset()
		return "", false, nil
	}

	line = string(f.buf[:n-2])
	f.Reset()
	return line, true, nil
}

// Reset drops any partial line.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// Discarding reports whether the framer is skipping the rest of an oversized line.
func (f *Framer) Discarding() bool { return f.discarding }

// Buffered returns the number of bytes of the current partial line.
func (f *Framer) Buffered() int { return len(f.buf) }

func (f *Framer) Overflows() uint64 { return f.overflows }
