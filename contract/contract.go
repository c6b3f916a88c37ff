// Package contract declares the compile-time description of a Kataribe
// link: the RPC endpoints either peer may call on the other, and the
// event channels either peer may emit on. Contracts are built once at
// application boot with RPC and Event and are treated as immutable
// thereafter; the runtime only ever reads from them.
package contract

import (
	"context"
	"fmt"
)

// Descriptor is the common shape of every entry in a Contract: it is
// tagged with a Kind so dispatch code can tell an RPC descriptor from an
// event descriptor without a type switch on the concrete type.
type Descriptor interface {
	Kind() DescriptorKind
}

// DescriptorKind discriminates RPC descriptors from event descriptors.
type DescriptorKind string

const (
	// KindRPC tags an *RPCDescriptor.
	KindRPC DescriptorKind = "rpc"
	// KindEventDescriptor tags an *EventDescriptor.
	KindEventDescriptor DescriptorKind = "event"
)

// RPCDescriptor describes one RPC endpoint: its method name and up to
// two validators each for the request and the response payload.
type RPCDescriptor struct {
	Method string

	RequestFunc    Validator
	RequestSchema  Validator
	ResponseFunc   Validator
	ResponseSchema Validator
}

// Kind implements Descriptor.
func (*RPCDescriptor) Kind() DescriptorKind { return KindRPC }

// ValidateRequest runs the descriptor's request validators (function
// first, schema as fallback) against payload.
func (d *RPCDescriptor) ValidateRequest(ctx context.Context, payload any) (any, error) {
	return runValidators(ctx, d.RequestFunc, d.RequestSchema, payload)
}

// ValidateResponse runs the descriptor's response validators (function
// first, schema as fallback) against payload.
func (d *RPCDescriptor) ValidateResponse(ctx context.Context, payload any) (any, error) {
	return runValidators(ctx, d.ResponseFunc, d.ResponseSchema, payload)
}

// EventDescriptor describes one event channel: its name and up to two
// validators for the payload.
type EventDescriptor struct {
	Channel string

	Func   Validator
	Schema Validator
}

// Kind implements Descriptor.
func (*EventDescriptor) Kind() DescriptorKind { return KindEventDescriptor }

// Validate runs the descriptor's validators (function first, schema as
// fallback) against payload.
func (d *EventDescriptor) Validate(ctx context.Context, payload any) (any, error) {
	return runValidators(ctx, d.Func, d.Schema, payload)
}

// RPCOption configures an RPCDescriptor built by RPC.
type RPCOption func(*RPCDescriptor)

// WithRequestValidator sets the function validator run against the
// request payload.
func WithRequestValidator(v Validator) RPCOption {
	return func(d *RPCDescriptor) { d.RequestFunc = v }
}

// WithRequestSchema sets the schema validator consulted for the request
// payload when no function validator is configured.
func WithRequestSchema(v Validator) RPCOption {
	return func(d *RPCDescriptor) { d.RequestSchema = v }
}

// WithResponseValidator sets the function validator run against the
// response payload.
func WithResponseValidator(v Validator) RPCOption {
	return func(d *RPCDescriptor) { d.ResponseFunc = v }
}

// WithResponseSchema sets the schema validator consulted for the
// response payload when no function validator is configured.
func WithResponseSchema(v Validator) RPCOption {
	return func(d *RPCDescriptor) { d.ResponseSchema = v }
}

// RPC declares a single RPC endpoint named method, with validators
// attached via options. It is one of the three declaration helpers
// mentioned in the contract model, alongside Event and New.
func RPC(method string, opts ...RPCOption) *RPCDescriptor {
	d := &RPCDescriptor{Method: method}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EventOption configures an EventDescriptor built by Event.
type EventOption func(*EventDescriptor)

// WithEventValidator sets the function validator run against the event
// payload.
func WithEventValidator(v Validator) EventOption {
	return func(d *EventDescriptor) { d.Func = v }
}

// WithEventSchema sets the schema validator consulted for the event
// payload when no function validator is configured.
func WithEventSchema(v Validator) EventOption {
	return func(d *EventDescriptor) { d.Schema = v }
}

// Event declares a single event channel named ch, with validators
// attached via options.
func Event(ch string, opts ...EventOption) *EventDescriptor {
	d := &EventDescriptor{Channel: ch}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Contract is the full, immutable description of a Kataribe link: every
// RPC endpoint the client may call on the server, every RPC endpoint the
// server may call on the client, and every event channel either side may
// emit on.
type Contract struct {
	RPCToServer map[string]*RPCDescriptor
	RPCToClient map[string]*RPCDescriptor
	Events      map[string]*EventDescriptor
}

// New is the contract identity helper: it assembles the three
// declaration maps into a single immutable Contract value, rejecting
// duplicate method/channel names within each map so construction-time
// mistakes are caught once, at boot, rather than silently shadowing a
// handler at dispatch time.
func New(rpcToServer, rpcToClient []*RPCDescriptor, events []*EventDescriptor) (*Contract, error) {
	c := &Contract{
		RPCToServer: make(map[string]*RPCDescriptor, len(rpcToServer)),
		RPCToClient: make(map[string]*RPCDescriptor, len(rpcToClient)),
		Events:      make(map[string]*EventDescriptor, len(events)),
	}
	for _, d := range rpcToServer {
		if _, exists := c.RPCToServer[d.Method]; exists {
			return nil, fmt.Errorf("contract: duplicate rpcToServer method %q", d.Method)
		}
		c.RPCToServer[d.Method] = d
	}
	for _, d := range rpcToClient {
		if _, exists := c.RPCToClient[d.Method]; exists {
			return nil, fmt.Errorf("contract: duplicate rpcToClient method %q", d.Method)
		}
		c.RPCToClient[d.Method] = d
	}
	for _, d := range events {
		if _, exists := c.Events[d.Channel]; exists {
			return nil, fmt.Errorf("contract: duplicate event channel %q", d.Channel)
		}
		c.Events[d.Channel] = d
	}
	return c, nil
}
