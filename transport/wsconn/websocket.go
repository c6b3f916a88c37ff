// Package wsconn adapts a gorilla/websocket connection to
// transport.Transport — the canonical transport named by the protocol.
// It is deliberately thin: framing and text/binary negotiation only, no
// envelope-aware logic.
package wsconn

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn adapts a single *websocket.Conn. The caller is responsible for
// performing the HTTP upgrade (client-side via websocket.Dialer,
// server-side via websocket.Upgrader) and handing the resulting
// connection to New.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex // gorilla/websocket forbids concurrent writers on one conn

	mu       sync.Mutex
	handlers []func(payload any)
	open     bool
	readOnce sync.Once
}

// New wraps ws and starts its read loop in a background goroutine.
func New(ws *websocket.Conn) *Conn {
	c := &Conn{ws: ws, open: true}
	c.startReadLoop()
	return c
}

func (c *Conn) startReadLoop() {
	c.readOnce.Do(func() {
		go func() {
			for {
				msgType, data, err := c.ws.ReadMessage()
				if err != nil {
					c.markClosed()
					return
				}
				c.deliver(msgType, data)
			}
		}()
	})
}

func (c *Conn) deliver(msgType int, data []byte) {
	c.mu.Lock()
	handlers := append([]func(payload any){}, c.handlers...)
	c.mu.Unlock()

	var payload any
	switch msgType {
	case websocket.TextMessage:
		payload = string(data)
	default:
		// Binary frames are handed through as already-structured
		// values: decode once here so handlers never need to branch
		// on frame type.
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return
		}
		payload = v
	}
	for _, h := range handlers {
		h(payload)
	}
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

// Send JSON-encodes v and writes it as a WebSocket text frame.
func (c *Conn) Send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// OnMessage registers handler for every frame received on this
// connection.
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

// Close sends a close frame with code and reason, then closes the
// underlying socket.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	alreadyClosed := !c.open
	c.open = false
	c.mu.Unlock()
	if alreadyClosed {
		return nil
	}

	closeCode := websocket.CloseNormalClosure
	if code != 0 {
		closeCode = code
	}
	msg := websocket.FormatCloseMessage(closeCode, reason)

	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, msg)
	c.writeMu.Unlock()

	return c.ws.Close()
}

// IsOpen reports whether the read loop has not yet observed a closed
// socket.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
