// Package ws tunnels the line protocol through websocket text frames, for
// co-processors that expose it over the network.
package ws

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"nesra/link"
)

const DriverName = "ws"

const DefaultURL = "ws://127.0.0.1:27639/"

const dialTimeout = 5 * time.Second

type Driver struct{}

func init() {
	link.Register(DriverName, &Driver{})
}

type Conn struct {
	urlstr string
	ws     net.Conn

	rmu sync.Mutex
	r   *wsutil.Reader
	// frame holds the unread part of the current frame
	frame io.Reader

	wmu sync.Mutex
	w   *wsutil.Writer

	// control answers pings and close frames
	control wsutil.FrameHandlerFunc
}

func (d *Driver) Open(name string) (link.Conn, error) {
	if name == "" {
		name = DefaultURL
	}
	return Dial(name)
}

func Dial(urlstr string) (*Conn, error) {
	log.Printf("ws: dial %s\n", urlstr)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, br, _, err := ws.Dial(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", urlstr, err)
	}

	// frames the server sent along with the handshake are already buffered in br
	var src io.Reader = conn
	if br != nil {
		src = io.MultiReader(br, conn)
	}

	c := &Conn{
		urlstr: urlstr,
		ws:     conn,
		r:      wsutil.NewClientSideReader(src),
		w:      wsutil.NewWriter(conn, ws.StateClientSide, ws.OpText),
	}
	c.control = wsutil.ControlFrameHandler(controlWriter{c}, ws.StateClientSide)
	return c, nil
}

// controlWriter serializes control replies with data writes.
type controlWriter struct{ c *Conn }

func (w controlWriter) Write(p []byte) (int, error) {
	w.c.wmu.Lock()
	defer w.c.wmu.Unlock()
	return w.c.ws.Write(p)
}

// Read returns bytes from successive text or binary frames as one stream.
func (c *Conn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for {
		if c.frame != nil {
			n, err := c.frame.Read(p)
			if err == io.EOF {
				c.frame = nil
				if n == 0 {
					continue
				}
				err = nil
			}
			if err != nil {
				return n, &link.DisconnectedError{Err: err}
			}
			return n, nil
		}

		hdr, err := c.r.NextFrame()
		if err != nil {
			return 0, &link.DisconnectedError{Err: err}
		}
		if hdr.OpCode.IsControl() {
			// pings get a pong; a close frame is echoed and ends the stream
			if err = c.control(hdr, c.r); err != nil {
				return 0, &link.DisconnectedError{Err: err}
			}
			continue
		}
		c.frame = c.r
	}
}

// Write sends p as a single text frame.
func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	n, err := c.w.Write(p)
	if err != nil {
		return n, &link.DisconnectedError{Err: err}
	}
	if err = c.w.Flush(); err != nil {
		return n, &link.DisconnectedError{Err: err}
	}
	return n, nil
}

func (c *Conn) Close() error {
	log.Printf("ws: close %s\n", c.urlstr)
	return c.ws.Close()
}
