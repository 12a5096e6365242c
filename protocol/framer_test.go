package protocol

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func feedAll(f *Framer, s string) (lines []string, errs []error) {
	for i := 0; i < len(s); i++ {
		line, ok, err := f.Feed(s[i])
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			lines = append(lines, line)
		}
	}
	return
}

func TestFramer_Feed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "single line",
			input: "READ_CRC\r\n",
			want:  []string{"READ_CRC"},
		},
		{
			name:  "empty lines ignored",
			input: "\r\n\r\nRESET\r\n\r\n",
			want:  []string{"RESET"},
		},
		{
			name:  "bare newline does not terminate",
			input: "A\nB\r\n",
			want:  []string{"A\nB"},
		},
		{
			name:  "several lines",
			input: "RESP=00;0C8;{}\r\nSTART_WATCH\r\n",
			want:  []string{"RESP=00;0C8;{}", "START_WATCH"},
		},
		{
			name:  "partial line held",
			input: "START_WA",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(MaxLine)
			got, errs := feedAll(f, tt.input)
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFramer_Overflow(t *testing.T) {
	f := NewFramer(16)

	lines, errs := feedAll(f, strings.Repeat("x", 20)+"\r\nRESET\r\n")
	if actual, expected := len(errs), 1; actual != expected {
		t.Fatalf("overflow count, actual = %v, expected = %v", actual, expected)
	}
	if !errors.Is(errs[0], ErrLineTooLong) {
		t.Errorf("error, actual = %v, expected = %v", errs[0], ErrLineTooLong)
	}
	// nothing of the oversized line survives, including its tail
	if diff := cmp.Diff([]string{"RESET"}, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	if actual, expected := f.Overflows(), uint64(1); actual != expected {
		t.Errorf("Overflows(), actual = %v, expected = %v", actual, expected)
	}
}

func TestReadLines(t *testing.T) {
	out := make(chan string, 8)
	r := strings.NewReader("READ_CRC\r\n" + strings.Repeat("y", 40) + "\r\nSTART_WATCH\r\n")

	err := ReadLines(context.Background(), r, NewFramer(32), out)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("ReadLines() error = %v", err)
	}
	close(out)

	var got []string
	for line := range out {
		got = append(got, line)
	}
	if diff := cmp.Diff([]string{"READ_CRC", "START_WATCH"}, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFramer_OverflowTailNotExecuted(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "command at end of oversized body",
			input: "RESP=07;0C8;" + strings.Repeat("x", 20) + "RESET\r\nREAD_CRC\r\n",
			want:  []string{"READ_CRC"},
		},
		{
			name:  "stray CR inside the discarded tail",
			input: strings.Repeat("x", 18) + "a\rRESET\r\nSTART_WATCH\r\n",
			want:  []string{"START_WATCH"},
		},
		{
			name:  "overflow lands on the terminator",
			input: strings.Repeat("x", 14) + "\r\nRESET\r\n",
			want:  []string{"RESET"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(16)
			lines, errs := feedAll(f, tt.input)
			if actual, expected := len(errs), 1; actual != expected {
				t.Fatalf("overflow count, actual = %v, expected = %v", actual, expected)
			}
			if diff := cmp.Diff(tt.want, lines); diff != "" {
				t.Errorf("lines mismatch (-want +got):\n%s", diff)
			}
			if f.Discarding() {
				t.Error("Discarding() = true after the next CRLF")
			}
		})
	}
}
