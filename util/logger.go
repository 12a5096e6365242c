package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"
)

type PanicSafeLogger struct {
	f  *os.File
	mw io.Writer
}

var std *PanicSafeLogger

func NewPanicSafeLogger(f *os.File) *PanicSafeLogger {
	std = &PanicSafeLogger{
		f:  f,
		mw: io.MultiWriter(f, os.Stderr),
	}
	return std
}

func (l *PanicSafeLogger) Write(p []byte) (n int, err error) {
	return l.mw.Write(p)
}

func (l *PanicSafeLogger) Flush() error {
	return l.f.Sync()
}

func FlushLogger() error {
	if std == nil {
		return nil
	}
	return std.Flush()
}

func LogPanic(err any) {
	log.Printf("paniced with %v\n", err)
	log.Printf("%s\n", string(debug.Stack()))
	_ = FlushLogger()
}

// LogPath names a timestamped log file for app in dir.
func LogPath(dir, app string, now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return filepath.Join(dir, fmt.Sprintf("%s-%s.log", app, ts))
}

// SetupLog points the standard logger at a new file in dir (the temp dir if
// empty) mirrored to stderr, and returns the file's path.
func SetupLog(dir, app string) (string, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)

	if dir == "" {
		dir = os.TempDir()
	}
	path := LogPath(dir, app, time.Now())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("could not open log file '%s' for writing\n", path)
		return "", err
	}
	log.Printf("logging to '%s'\n", path)
	log.SetOutput(NewPanicSafeLogger(f))
	return path, nil
}
