// Package link carries the line protocol between the adapter and the network
// co-processor over a pluggable byte-stream transport.
package link

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

type Driver interface {
	Open(name string) (Conn, error)
}

// Conn is a full-duplex byte stream to the co-processor. Read and Write may be
// called concurrently from different goroutines.
type Conn interface {
	io.ReadWriteCloser
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a link driver available by the provided name.
// If Register is called twice with the same name or if driver is nil,
// it panics.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("link: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("link: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

func unregisterAllDrivers() {
	driversMu.Lock()
	defer driversMu.Unlock()
	// For tests.
	drivers = make(map[string]Driver)
}

// Drivers returns a sorted list of the names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]string, 0, len(drivers))
	for name := range drivers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

func Open(driverName, portName string) (Conn, error) {
	driversMu.RLock()
	driveri, ok := drivers[driverName]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("link: unknown driver %q (forgotten import?)", driverName)
	}

	return driveri.Open(portName)
}
