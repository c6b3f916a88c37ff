package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/yamayuski/kataribe/contract"
	"github.com/yamayuski/kataribe/envelope"
	"github.com/yamayuski/kataribe/middleware"
	"github.com/yamayuski/kataribe/pending"
	"github.com/yamayuski/kataribe/transport"
)

// Client is the client-side runtime: it calls rpcToServer endpoints on
// the server, emits events, subscribes to events the server emits, and
// answers rpcToClient requests the server initiates via the handlers
// supplied at construction.
type Client struct {
	t        transport.Transport
	contract *contract.Contract
	opts     Options
	pipeline *middleware.Pipeline
	table    *pending.Table
	side     *side

	mu           sync.Mutex
	subscribers  map[string][]*clientSubscriber
	subSeq       int
	closed       bool
	disposeOnMsg func()
}

type clientSubscriber struct {
	id      int
	handler EventHandler
}

// NewClient constructs a Client over t, dispatching inbound rpcToClient
// requests to handlers (one entry per contract.Contract.RPCToClient
// method the application implements), and immediately sends a hello
// envelope advertising opts.Features.
func NewClient(t transport.Transport, c *contract.Contract, handlers map[string]RPCHandler, opts Options) *Client {
	opts = opts.withDefaults()
	pipeline := middleware.NewPipeline(opts.Middlewares...)
	table := pending.New()

	cl := &Client{
		t:           t,
		contract:    c,
		opts:        opts,
		pipeline:    pipeline,
		table:       table,
		subscribers: make(map[string][]*clientSubscriber),
	}

	cl.side = &side{
		version:        opts.Version,
		log:            opts.Logger,
		rpcDescriptors: c.RPCToClient,
		rpcHandlers:    handlers,
		events:         c.Events,
		dispatchEvent:  cl.dispatchEvent,
		pending:        table,
		pipeline:       pipeline,
		rawSend:        cl.rawSend,
		onUnknown:      opts.OnUnknownEnvelope,
	}

	cl.disposeOnMsg = t.OnMessage(func(payload any) {
		cl.side.dispatch(context.Background(), payload)
	})

	cl.sendHello()

	return cl
}

func (c *Client) sendHello() {
	env := envelope.New(envelope.KindHello, c.opts.Version)
	env.Feat = c.opts.Features
	if err := c.rawSend(context.Background(), env); err != nil {
		c.opts.Logger.Warn("failed to send hello", "error", err)
	}
}

// rawSend runs the outbound middleware chain over env and hands it to
// the transport.
func (c *Client) rawSend(ctx context.Context, env *envelope.Envelope) error {
	if c.pipeline != nil {
		if err := c.pipeline.Run(ctx, middleware.Outbound, env); err != nil {
			return fmt.Errorf("runtime: outbound middleware: %w", err)
		}
	}
	return c.t.Send(ctx, env)
}

// Call invokes the rpcToServer method named method with req, blocking
// until the server responds, the call times out, or the client is
// closed. The returned payload has already passed the descriptor's
// response validation.
func (c *Client) Call(ctx context.Context, method string, req any) (any, error) {
	desc, ok := c.contract.RPCToServer[method]
	if !ok {
		return nil, fmt.Errorf("runtime: %w: %s", ErrNotFound, method)
	}

	id := c.opts.GenerateID()
	resultCh := make(chan rpcResult, 1)
	c.table.Register(id, method,
		func(payload any) { resultCh <- rpcResult{payload: payload} },
		func(err error) { resultCh <- rpcResult{err: err} },
		c.opts.Timeout,
	)

	go c.sendRequest(ctx, id, method, desc, req)

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		validated, err := desc.ValidateResponse(ctx, res.payload)
		if err != nil {
			return nil, fmt.Errorf("runtime: response validation: %w", err)
		}
		return validated, nil
	case <-ctx.Done():
		c.table.Cancel(id, ctx.Err())
		return nil, ctx.Err()
	}
}

type rpcResult struct {
	payload any
	err     error
}

func (c *Client) sendRequest(ctx context.Context, id, method string, desc *contract.RPCDescriptor, req any) {
	validated, err := desc.ValidateRequest(ctx, req)
	if err != nil {
		c.table.Cancel(id, fmt.Errorf("runtime: request validation: %w", err))
		return
	}

	env := envelope.New(envelope.KindRPCRequest, c.opts.Version)
	env.ID = id
	env.Ch = method
	env.P = validated

	if err := c.rawSend(ctx, env); err != nil {
		c.table.Cancel(id, err)
	}
}

// Emit fires a fire-and-forget event on ch. It returns immediately; the
// validate→middleware→send flow runs asynchronously and any failure is
// only logged, never surfaced to the caller.
func (c *Client) Emit(ctx context.Context, ch string, payload any) {
	go func() {
		var validated any = payload
		if desc, ok := c.contract.Events[ch]; ok {
			v, err := desc.Validate(ctx, payload)
			if err != nil {
				c.opts.Logger.Error("event validation failed on emit", "ch", ch, "error", err)
				return
			}
			validated = v
		}

		env := envelope.New(envelope.KindEvent, c.opts.Version)
		env.Ch = ch
		env.P = validated

		if err := c.rawSend(ctx, env); err != nil {
			c.opts.Logger.Error("failed to emit event", "ch", ch, "error", err)
		}
	}()
}

// Subscribe registers handler against event channel ch. Multiple
// subscribers per channel are invoked sequentially, in registration
// order; a panic in one does not prevent the others from running. The
// returned dispose function removes this specific subscription.
func (c *Client) Subscribe(ch string, handler EventHandler) (dispose func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subSeq++
	id := c.subSeq
	sub := &clientSubscriber{id: id, handler: handler}
	c.subscribers[ch] = append(c.subscribers[ch], sub)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.subscribers[ch]
		for i, s := range subs {
			if s.id == id {
				c.subscribers[ch] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

func (c *Client) dispatchEvent(ctx context.Context, ch string, payload any) {
	c.mu.Lock()
	subs := append([]*clientSubscriber{}, c.subscribers[ch]...)
	c.mu.Unlock()

	for _, sub := range subs {
		invokeEventHandlerSafely(c.opts.Logger, ch, sub.handler, ctx, payload)
	}
}

// Close closes the underlying transport, then rejects every outstanding
// pending call with a shutdown error and empties the pending table.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.disposeOnMsg != nil {
		c.disposeOnMsg()
	}

	err := c.t.Close(1000, "runtime closed")
	c.table.AbandonAll()
	return err
}

// PendingCount reports the number of outstanding outbound RPC calls.
// Exposed for tests and operational introspection, not part of the
// protocol.
func (c *Client) PendingCount() int {
	return c.table.Len()
}
