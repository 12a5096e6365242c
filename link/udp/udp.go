// Package udp carries the line protocol in UDP datagrams, one or more lines
// per datagram. Intended for bench setups on a LAN.
package udp

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"nesra/link"
)

const DriverName = "udp"

const DefaultAddr = "127.0.0.1:27640"

// MaxDatagram bounds a single outbound write; longer writes are split.
const MaxDatagram = 1400

type Driver struct{}

func init() {
	link.Register(DriverName, &Driver{})
}

func (d *Driver) Open(name string) (link.Conn, error) {
	if name == "" {
		name = DefaultAddr
	}
	return Dial(name)
}

type Conn struct {
	name string
	c    *net.UDPConn

	read  chan []byte
	write chan []byte

	// pending is the unread tail of the last datagram
	pending []byte
	err     error

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func Dial(hostport string) (*Conn, error) {
	log.Printf("udp: connect to '%s'\n", hostport)

	raddr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %s: %w", hostport, err)
	}
	uc, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", hostport, err)
	}

	c := &Conn{
		name:  hostport,
		c:     uc,
		read:  make(chan []byte, 64),
		write: make(chan []byte, 64),
		done:  make(chan struct{}),
	}
	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()

	log.Printf("udp: connected to '%s'\n", hostport)
	return c, nil
}

// LocalAddr is the address datagrams are sent from.
func (c *Conn) LocalAddr() net.Addr { return c.c.LocalAddr() }

func (c *Conn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		b, ok := <-c.read
		if !ok {
			c.err = &link.DisconnectedError{Err: io.EOF}
			continue
		}
		c.pending = b
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	for off := 0; off < len(p); off += MaxDatagram {
		end := off + MaxDatagram
		if end > len(p) {
			end = len(p)
		}
		select {
		case <-c.done:
			return off, &link.DisconnectedError{Err: net.ErrClosed}
		default:
		}
		w := make([]byte, end-off)
		copy(w, p[off:end])
		select {
		case c.write <- w:
		case <-c.done:
			return off, &link.DisconnectedError{Err: net.ErrClosed}
		}
	}
	return len(p), nil
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		log.Printf("udp: disconnect from '%s'\n", c.name)
		close(c.done)
		if derr := c.c.SetReadDeadline(time.Now()); derr != nil {
			log.Printf("udp: setreaddeadline: %v\n", derr)
		}
		err = c.c.Close()
		c.wg.Wait()
	})
	return err
}

// must run in a goroutine
func (c *Conn) readLoop() {
	defer func() {
		close(c.read)
		c.wg.Done()
		log.Printf("udp: readLoop exited\n")
	}()

	// we only need a single receive buffer:
	b := make([]byte, 1500)
	for {
		n, _, err := c.c.ReadFromUDP(b)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				select {
				case <-c.done:
				default:
					log.Printf("udp: read: %v\n", err)
				}
			}
			return
		}
		if n == 0 {
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, b[:n])
		select {
		case c.read <- datagram:
		case <-c.done:
			return
		}
	}
}

// must run in a goroutine
func (c *Conn) writeLoop() {
	defer func() {
		c.wg.Done()
		log.Printf("udp: writeLoop exited\n")
	}()

	for {
		select {
		case w := <-c.write:
			if _, err := c.c.Write(w); err != nil {
				if !errors.Is(err, net.ErrClosed) {
					log.Printf("udp: write: %v\n", err)
				}
				return
			}
		case <-c.done:
			return
		}
	}
}
