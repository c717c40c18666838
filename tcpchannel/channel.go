// Package tcpchannel implements the TCP length-prefix framed channel
// (C2): one message per `[i32 length][length bytes]` frame over a
// stream socket. It is a deliberate simplification of the teacher's
// protocol package, which wraps every frame in a 14-byte header
// carrying a magic number, version, codec type, message type, and a
// sequence number used to multiplex concurrent requests over one
// connection. That multiplexing is out of scope here — at most one
// send and one receive may be in flight on a Channel — so only the
// length prefix survives.
package tcpchannel

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/vladaeloaiei/byteremote/rpcerr"
)

// Channel wraps one TCP connection in the Open/Closed state machine
// the spec calls for. Close is idempotent; Send/Receive on a Closed
// channel return ErrNotConnected.
type Channel struct {
	conn   net.Conn
	closed atomic.Bool
	mu     sync.Mutex // guards Send so a frame is never interleaved
}

// New wraps an already-established net.Conn.
func New(conn net.Conn) *Channel {
	return &Channel{conn: conn}
}

// Dial establishes a new TCP connection and wraps it in a Channel.
func Dial(addr string) (*Channel, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, rpcerr.Wrap(err, true)
	}
	return New(conn), nil
}

// Send writes the 4-byte big-endian length prefix followed by payload.
func (c *Channel) Send(payload []byte) error {
	if c.closed.Load() {
		return rpcerr.Wrap(rpcerr.ErrNotConnected, false)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := c.conn.Write(header[:]); err != nil {
		return rpcerr.Wrap(err, true)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := c.conn.Write(payload); err != nil {
		return rpcerr.Wrap(err, true)
	}
	return nil
}

// Receive reads exactly one length-prefixed frame.
func (c *Channel) Receive() ([]byte, error) {
	if c.closed.Load() {
		return nil, rpcerr.Wrap(rpcerr.ErrNotConnected, false)
	}

	var header [4]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		if err == io.EOF {
			return nil, rpcerr.Wrap(rpcerr.ErrChannelClosed, true)
		}
		return nil, rpcerr.Wrap(rpcerr.ErrShortHeader, true)
	}

	length := int32(binary.BigEndian.Uint32(header[:]))
	if length < 0 {
		return nil, rpcerr.Wrap(rpcerr.ErrFrameTooLarge, false)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, rpcerr.Wrap(err, true)
	}
	return payload, nil
}

// Close transitions the channel to Closed. A second Close is a no-op.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// RemoteAddr reports the peer address.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
