// Package transport declares the narrow interface Kataribe runtimes use
// to send and receive envelopes. It has no opinion on what lies beneath
// it — WebSocket, a framed TCP socket, a WebRTC DataChannel, or a
// WebTransport stream are all equally valid, as long as the
// implementation is reliable, ordered, and message-framed.
package transport

import "context"

// Transport is the inward interface the core consumes. Implementations
// live in sibling packages (wsconn, framedtcp, webrtcdc, webtransport)
// and are thin: they own no RPC or event semantics, only framing and
// delivery of opaque messages.
type Transport interface {
	// Send accepts a structured value (normally an *envelope.Envelope)
	// and forwards it, converting to the wire representation the
	// transport uses. It may block until the transport accepts the
	// write; it must return once the message is durably queued for
	// send, not necessarily once it is acknowledged by the peer.
	Send(ctx context.Context, v any) error

	// OnMessage registers handler to be invoked once per received
	// frame. The payload is either a string (a textual frame, which
	// the core JSON-decodes) or an already-structured value. OnMessage
	// returns a disposer that unregisters handler.
	OnMessage(handler func(payload any)) (dispose func())

	// Close terminates the underlying link. code and reason are
	// advisory; implementations that have no protocol-level close
	// frame may ignore them.
	Close(code int, reason string) error

	// IsOpen reports whether the transport currently believes its
	// link is usable for Send.
	IsOpen() bool
}
