// Package webrtcdc adapts a pion/webrtc DataChannel to transport.Transport,
// for peers that need a NAT-traversing link rather than a plain
// TCP/WebSocket connection — browser-to-browser signaling and
// media-adjacent control planes are the primary use case.
package webrtcdc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Conn adapts a single *webrtc.DataChannel. The caller owns signaling and
// PeerConnection setup; New only wires the channel's message and state
// callbacks.
type Conn struct {
	dc *webrtc.DataChannel

	mu       sync.Mutex
	handlers []func(payload any)
	open     bool
}

// New wraps dc. The channel's open state is tracked through its OnOpen
// and OnClose callbacks, so Send attempted before negotiation completes
// fails loudly rather than silently dropping data.
func New(dc *webrtc.DataChannel) *Conn {
	c := &Conn{dc: dc}

	dc.OnOpen(func() {
		c.mu.Lock()
		c.open = true
		c.mu.Unlock()
	})
	dc.OnClose(func() {
		c.mu.Lock()
		c.open = false
		c.mu.Unlock()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.deliver(msg.Data)
	})

	if dc.ReadyState() == webrtc.DataChannelStateOpen {
		c.open = true
	}

	return c
}

func (c *Conn) deliver(data []byte) {
	c.mu.Lock()
	handlers := append([]func(payload any){}, c.handlers...)
	c.mu.Unlock()

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	for _, h := range handlers {
		h(payload)
	}
}

var errNotOpen = errors.New("webrtcdc: data channel is not open")

// Send JSON-encodes v and sends it as a single DataChannel message.
func (c *Conn) Send(ctx context.Context, v any) error {
	if !c.IsOpen() {
		return errNotOpen
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.dc.Send(data)
}

// OnMessage registers handler for every message received on this channel.
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

// Close closes the underlying DataChannel. code and reason are accepted
// for transport.Transport symmetry; the DataChannel close handshake
// carries no such fields.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	return c.dc.Close()
}

// IsOpen reports the channel's last observed ready state.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
