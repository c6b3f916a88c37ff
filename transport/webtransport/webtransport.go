// Package webtransport adapts a quic-go/webtransport-go stream to
// transport.Transport. WebTransport sessions carry independent streams
// rather than a single duplex pipe, so this adapter pins Kataribe's
// traffic to one bidirectional stream per session — opened by the client,
// accepted by the server — and length-prefixes each envelope so stream
// reads, which have no inherent message boundary, can be split back into
// discrete frames.
package webtransport

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"sync"

	"github.com/quic-go/webtransport-go"
)

// Stream is the subset of webtransport.Stream this adapter needs; both
// *webtransport.Stream and test doubles satisfy it.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Conn adapts a single WebTransport stream.
type Conn struct {
	stream  Stream
	reader  *bufio.Reader
	writeMu sync.Mutex

	mu       sync.Mutex
	handlers []func(payload any)
	closed   bool
}

// New wraps stream and starts its read loop in a background goroutine.
func New(stream Stream) *Conn {
	c := &Conn{stream: stream, reader: bufio.NewReader(stream)}
	go c.recvLoop()
	return c
}

// OpenSession opens the client-side bidirectional stream for an
// established WebTransport session and wraps it.
func OpenSession(ctx context.Context, session *webtransport.Session) (*Conn, error) {
	s, err := session.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return New(s), nil
}

// AcceptSession accepts the server-side bidirectional stream opened by a
// client on an established WebTransport session and wraps it.
func AcceptSession(ctx context.Context, session *webtransport.Session) (*Conn, error) {
	s, err := session.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return New(s), nil
}

func (c *Conn) recvLoop() {
	for {
		var length uint32
		if err := binary.Read(c.reader, binary.BigEndian, &length); err != nil {
			c.markClosed()
			return
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(c.reader, body); err != nil {
			c.markClosed()
			return
		}

		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			continue
		}

		c.mu.Lock()
		handlers := append([]func(payload any){}, c.handlers...)
		c.mu.Unlock()
		for _, h := range handlers {
			h(payload)
		}
	}
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Send JSON-encodes v, length-prefixes it, and writes it to the stream.
func (c *Conn) Send(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(body)))
	if _, err := c.stream.Write(length[:]); err != nil {
		return err
	}
	_, err = c.stream.Write(body)
	return err
}

// OnMessage registers handler for every envelope received on the stream.
func (c *Conn) OnMessage(handler func(payload any)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
	idx := len(c.handlers) - 1
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < len(c.handlers) {
			c.handlers[idx] = func(any) {}
		}
	}
}

// Close closes the underlying stream. code and reason are accepted for
// transport.Transport symmetry; a plain stream close carries neither.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	c.mu.Unlock()
	if alreadyClosed {
		return nil
	}
	return c.stream.Close()
}

// IsOpen reports whether the receive loop has not yet observed a stream
// error.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}
