package util

import (
	"log"
	"os"
	"testing"
)

func NewTestingLogger(tb testing.TB) *CommitLogger {
	return &CommitLogger{
		Committer: func(p []byte) {
			tb.Log(string(p))
		},
		buf: nil,
	}
}

// RedirectLog sends the standard logger to tb until the test ends.
func RedirectLog(tb testing.TB) {
	l := NewTestingLogger(tb)
	flags := log.Flags()
	log.SetOutput(l)
	log.SetFlags(log.Lmicroseconds)
	tb.Cleanup(func() {
		l.Commit()
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})
}
