package link

import (
	"errors"
	"fmt"
)

var ErrNoDeviceFound = errors.New("link: no co-processor found")

// DisconnectedError reports a transport that went away underneath a Conn.
type DisconnectedError struct {
	Err error
}

func (e *DisconnectedError) Unwrap() error { return e.Err }
func (e *DisconnectedError) Error() string {
	if e.Err == nil {
		return "link: disconnected"
	}
	return fmt.Sprintf("link: disconnected: %v", e.Err)
}
