package protocol

import (
	"context"
	"io"
	"log"
)

// ReadLines frames bytes from r and delivers complete lines to out until r
// fails or ctx is done. Oversized lines are logged and discarded.
func ReadLines(ctx context.Context, r io.Reader, f *Framer, out chan<- string) error {
	buf := make([]byte, 512)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			line, ok, ferr := f.Feed(b)
			if ferr != nil {
				log.Printf("protocol: %v (%d total)\n", ferr, f.Overflows())
				continue
			}
			if !ok {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			return err
		}
	}
}
