package util

import "bytes"

// CommitLogger buffers writes and hands each complete line to Committer.
type CommitLogger struct {
	Committer func(p []byte)
	buf       []byte
}

func (l *CommitLogger) Write(p []byte) (n int, err error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		l.commit(l.buf[:i])
		l.buf = l.buf[:copy(l.buf, l.buf[i+1:])]
	}
	return len(p), nil
}

func (l *CommitLogger) commit(p []byte) {
	if l.Committer != nil {
		l.Committer(p)
	}
}

// Commit hands over any partial line.
func (l *CommitLogger) Commit() {
	if len(l.buf) > 0 {
		l.commit(l.buf)
	}
	l.Reset()
}

func (l *CommitLogger) Reset() {
	l.buf = l.buf[:0]
}
