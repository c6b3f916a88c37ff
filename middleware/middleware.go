// Package middleware implements the ordered pre-send / post-receive
// interception chain that runs over every envelope. Unlike an onion-style
// HandlerFunc chain that wraps a single business handler (the shape
// mini-rpc's middleware.Chain uses), Kataribe's middleware chain is flat
// and sequential: each registered function runs to completion, in
// registration order, before the next one starts, and none of them
// calls the others — an envelope passes through the entire pipeline
// before the dispatcher moves on to whatever comes next (sending the
// envelope, or invoking a handler).
package middleware

import (
	"context"

	"github.com/yamayuski/kataribe/envelope"
)

// Direction is which way an envelope is traveling through the pipeline.
type Direction string

const (
	// Outbound applies to envelopes about to be sent.
	Outbound Direction = "out"
	// Inbound applies to envelopes just received.
	Inbound Direction = "in"
)

// EnvelopeContext is what each middleware function receives: the
// direction the envelope is traveling, the envelope itself, and a
// Mutate hook. Mutations should go through Mutate rather than writing
// fields directly, so that a future compatibility layer (e.g. copy-on-
// write envelopes) has a single interception point; today Mutate simply
// invokes fn against the live envelope.
type EnvelopeContext struct {
	Direction Direction
	Envelope  *envelope.Envelope
}

// Mutate applies fn to the envelope under the context's care.
func (c *EnvelopeContext) Mutate(fn func(*envelope.Envelope)) {
	fn(c.Envelope)
}

// Func is a single middleware: it inspects and may mutate ec.Envelope,
// returning an error to abort the rest of the pipeline.
type Func func(ctx context.Context, ec *EnvelopeContext) error

// Pipeline is an ordered, immutable list of middleware functions.
type Pipeline struct {
	funcs []Func
}

// NewPipeline builds a Pipeline that runs funcs in the given order.
func NewPipeline(funcs ...Func) *Pipeline {
	cp := make([]Func, len(funcs))
	copy(cp, funcs)
	return &Pipeline{funcs: cp}
}

// Run executes every middleware function in registration order,
// awaiting each one before starting the next, over env traveling in
// direction dir. It stops and returns the first error encountered: on
// the outbound path that fails the send (and, for RPC requests, rejects
// the pending entry); on the inbound path the caller is expected to log
// the error and discard the envelope without invoking a handler.
func (p *Pipeline) Run(ctx context.Context, dir Direction, env *envelope.Envelope) error {
	ec := &EnvelopeContext{Direction: dir, Envelope: env}
	for _, fn := range p.funcs {
		if err := fn(ctx, ec); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many middleware functions are registered.
func (p *Pipeline) Len() int {
	return len(p.funcs)
}
