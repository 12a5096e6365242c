package util

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCommitLogger(t *testing.T) {
	var got []string
	l := &CommitLogger{Committer: func(p []byte) { got = append(got, string(p)) }}

	_, _ = l.Write([]byte("one\ntw"))
	_, _ = l.Write([]byte("o\nthree"))
	l.Commit()
	l.Commit()

	if diff := cmp.Diff([]string{"one", "two", "three"}, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestIsTruthy(t *testing.T) {
	for s, want := range map[string]bool{"1": true, " YES ": true, "on": true, "0": false, "": false, "nope": false} {
		if actual := IsTruthy(s); actual != want {
			t.Errorf("IsTruthy(%q), actual = %v, expected = %v", s, actual, want)
		}
	}
}

func TestLogPath(t *testing.T) {
	ts := time.Date(2022, 12, 19, 14, 26, 8, 123e6, time.UTC)
	if actual, expected := LogPath("/tmp", "nesra", ts), "/tmp/nesra-2022-12-19T14-26-08-123Z.log"; actual != expected {
		t.Errorf("actual = %v, expected = %v", actual, expected)
	}
}
