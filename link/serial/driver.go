// Package serial is the UART link driver. Port names are "device;baud"; an
// empty device selects the first USB serial bridge found.
package serial

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"nesra/link"
)

const DriverName = "serial"

const DefaultBaud = 115200

// USB vendor ids of the bridges co-processor boards ship with.
var knownVIDs = map[string]string{
	"10C4": "cp210x",
	"1A86": "ch34x",
	"0403": "ftdi",
	"303A": "esp32-usb",
	"2E8A": "rp2040",
}

type Driver struct{}

func init() {
	link.Register(DriverName, &Driver{})
}

type Conn struct {
	name string
	f    serial.Port
}

// ParseName splits "device;baud" into its parts.
func ParseName(name string) (port string, baud int, err error) {
	parts := strings.Split(name, ";")
	port = parts[0]
	baud = DefaultBaud
	if len(parts) > 1 && parts[1] != "" {
		baud, err = strconv.Atoi(parts[1])
		if err != nil || baud <= 0 {
			return "", 0, fmt.Errorf("serial: bad baud rate %q", parts[1])
		}
	}
	return
}

func DetectDevice() (portName string, err error) {
	var ports []*enumerator.PortDetails

	ports, err = enumerator.GetDetailedPortsList()
	if err != nil {
		return
	}

	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		if kind, ok := knownVIDs[strings.ToUpper(port.VID)]; ok {
			log.Printf("serial: found %s bridge on %s (serial %s)\n", kind, port.Name, port.SerialNumber)
			return port.Name, nil
		}
	}

	return "", link.ErrNoDeviceFound
}

func (d *Driver) Open(name string) (link.Conn, error) {
	portName, baud, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	if portName == "" {
		portName, err = DetectDevice()
		if err != nil {
			return nil, err
		}
	}

	f, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s at %d baud: %w", portName, baud, err)
	}

	if err = f.SetDTR(true); err != nil {
		f.Close()
		return nil, fmt.Errorf("serial: failed to set DTR: %w", err)
	}

	log.Printf("serial: opened %s at %d baud\n", portName, baud)
	return &Conn{name: portName, f: f}, nil
}

func (c *Conn) Read(p []byte) (n int, err error) {
	n, err = c.f.Read(p)
	if err != nil {
		return n, &link.DisconnectedError{Err: err}
	}
	if n == 0 {
		// go.bug.st/serial reports a closed port as a zero-length read
		return 0, &link.DisconnectedError{Err: io.EOF}
	}
	return
}

func (c *Conn) Write(p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		n, err := c.f.Write(p[sent:])
		if err != nil {
			return sent, &link.DisconnectedError{Err: err}
		}
		sent += n
	}
	return sent, nil
}

func (c *Conn) Close() (err error) {
	// Clear DTR (ignore any errors since we're closing):
	c.f.SetDTR(false)

	err = c.f.Close()
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortClosed {
			return nil
		}
		return fmt.Errorf("serial: could not close %s: %w", c.name, err)
	}
	return
}
