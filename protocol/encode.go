package protocol

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const crlf = "\r\n"

// Request is an HTTP call the co-processor performs on the adapter's behalf.
type Request struct {
	Method string
	URL    string
	Body   string
}

// Writer emits CRLF-terminated lines to the co-processor.
// It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) line(format string, args ...interface{}) error {
	s := fmt.Sprintf(format, args...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.w, s+crlf); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}
	return nil
}

// field keeps user-supplied text from breaking line framing.
var field = strings.NewReplacer("\r", " ", "\n", " ")

// Request writes REQ=II;M:method;U:url;D:body.
func (w *Writer) Request(id uint8, req Request) error {
	return w.line("REQ=%02X;M:%s;U:%s;D:%s", id, req.Method, field.Replace(req.URL), field.Replace(req.Body))
}

// GameInfo writes GAME_INFO=id;title;image.
func (w *Writer) GameInfo(id uint32, title, image string) error {
	return w.line("GAME_INFO=%d;%s;%s", id, field.Replace(title), field.Replace(image))
}

// GameInfoFailed reports a game that could not be loaded.
func (w *Writer) GameInfoFailed() error {
	return w.GameInfo(0, "No Title", "No URL")
}

// Achievement writes A=id;title;badge.
func (w *Writer) Achievement(id uint32, title, badge string) error {
	return w.line("A=%d;%s;%s", id, field.Replace(title), field.Replace(badge))
}

// Resetted reports a console reset.
func (w *Writer) Resetted() error {
	return w.line("NES_RESETED")
}

// Fingerprint answers READ_CRC with the two PRG checksums.
func (w *Writer) Fingerprint(lo, hi uint32) error {
	return w.line("READ_CRC=%#x,%#x", lo, hi)
}

// Banner announces the firmware version once at boot.
func (w *Writer) Banner(version string) error {
	return w.line("NESRA_FIRMWARE_VERSION=%s", field.Replace(version))
}
