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

// Server is the server-side runtime: for every accepted transport it
// creates a Connection that answers rpcToServer requests the client
// makes, dispatches inbound events to the single static handler
// configured per channel, and exposes a typed proxy for server-
// initiated rpcToClient calls against that one connection.
type Server struct {
	contract      *contract.Contract
	opts          Options
	rpcHandlers   map[string]RPCHandler
	eventHandlers map[string]EventHandler

	mu          sync.Mutex
	connections map[*Connection]struct{}
}

// NewServer constructs a Server. rpcHandlers answers contract.RPCToServer
// methods; eventHandlers is the single mapping of event channel to
// handler described by the protocol's server-side subscription model
// (one handler per channel, supplied once, shared by every connection).
func NewServer(c *contract.Contract, rpcHandlers map[string]RPCHandler, eventHandlers map[string]EventHandler, opts Options) *Server {
	return &Server{
		contract:      c,
		opts:          opts.withDefaults(),
		rpcHandlers:   rpcHandlers,
		eventHandlers: eventHandlers,
		connections:   make(map[*Connection]struct{}),
	}
}

// Connection is a handle combining one transport, the server's dispatch
// logic for it, and a typed proxy for issuing server-to-client RPCs
// against it.
type Connection struct {
	t        transport.Transport
	server   *Server
	pipeline *middleware.Pipeline
	table    *pending.Table
	side     *side

	mu           sync.Mutex
	closed       bool
	disposeOnMsg func()
}

// Accept wraps t in a new Connection, registers it in the server's
// connection set, wires inbound dispatch, and sends the initial hello
// envelope advertising the server's configured features.
func (s *Server) Accept(t transport.Transport) *Connection {
	pipeline := middleware.NewPipeline(s.opts.Middlewares...)
	table := pending.New()

	conn := &Connection{
		t:        t,
		server:   s,
		pipeline: pipeline,
		table:    table,
	}

	conn.side = &side{
		version:        s.opts.Version,
		log:            s.opts.Logger,
		rpcDescriptors: s.contract.RPCToServer,
		rpcHandlers:    s.rpcHandlers,
		events:         s.contract.Events,
		dispatchEvent:  conn.dispatchEvent,
		pending:        table,
		pipeline:       pipeline,
		rawSend:        conn.rawSend,
		onUnknown:      s.opts.OnUnknownEnvelope,
	}

	s.mu.Lock()
	s.connections[conn] = struct{}{}
	s.mu.Unlock()

	conn.disposeOnMsg = t.OnMessage(func(payload any) {
		conn.side.dispatch(context.Background(), payload)
	})

	conn.sendHello(s.opts.Features)

	return conn
}

// Connections returns a snapshot of the currently open connections.
func (s *Server) Connections() []*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Connection, 0, len(s.connections))
	for c := range s.connections {
		out = append(out, c)
	}
	return out
}

// Close iterates the server's connection set, closing every connection
// (which in turn drains its in-flight dispatches bounded by ctx, closes
// its transport, and abandons its pending calls), then empties the set.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.connections = make(map[*Connection]struct{})
	s.mu.Unlock()

	var firstErr error
	for _, c := range conns {
		if err := c.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (conn *Connection) sendHello(features []string) {
	env := envelope.New(envelope.KindHello, conn.side.version)
	env.Feat = features
	if err := conn.rawSend(context.Background(), env); err != nil {
		conn.side.log.Warn("failed to send hello", "error", err)
	}
}

func (conn *Connection) rawSend(ctx context.Context, env *envelope.Envelope) error {
	if conn.pipeline != nil {
		if err := conn.pipeline.Run(ctx, middleware.Outbound, env); err != nil {
			return fmt.Errorf("runtime: outbound middleware: %w", err)
		}
	}
	return conn.t.Send(ctx, env)
}

// CallClient invokes the rpcToClient method named method against this
// connection's peer, blocking until it responds, times out, or the
// connection is closed.
func (conn *Connection) CallClient(ctx context.Context, method string, req any) (any, error) {
	desc, ok := conn.server.contract.RPCToClient[method]
	if !ok {
		return nil, fmt.Errorf("runtime: %w: %s", ErrNotFound, method)
	}

	id := conn.server.opts.GenerateID()
	resultCh := make(chan rpcResult, 1)
	conn.table.Register(id, method,
		func(payload any) { resultCh <- rpcResult{payload: payload} },
		func(err error) { resultCh <- rpcResult{err: err} },
		conn.server.opts.Timeout,
	)

	go func() {
		validated, err := desc.ValidateRequest(ctx, req)
		if err != nil {
			conn.table.Cancel(id, fmt.Errorf("runtime: request validation: %w", err))
			return
		}
		env := envelope.New(envelope.KindRPCRequest, conn.side.version)
		env.ID = id
		env.Ch = method
		env.P = validated
		if err := conn.rawSend(ctx, env); err != nil {
			conn.table.Cancel(id, err)
		}
	}()

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
		conn.table.Cancel(id, ctx.Err())
		return nil, ctx.Err()
	}
}

// Emit fires a fire-and-forget event to this connection's peer.
func (conn *Connection) Emit(ctx context.Context, ch string, payload any) {
	go func() {
		var validated any = payload
		if desc, ok := conn.server.contract.Events[ch]; ok {
			v, err := desc.Validate(ctx, payload)
			if err != nil {
				conn.side.log.Error("event validation failed on emit", "ch", ch, "error", err)
				return
			}
			validated = v
		}
		env := envelope.New(envelope.KindEvent, conn.side.version)
		env.Ch = ch
		env.P = validated
		if err := conn.rawSend(ctx, env); err != nil {
			conn.side.log.Error("failed to emit event", "ch", ch, "error", err)
		}
	}()
}

func (conn *Connection) dispatchEvent(ctx context.Context, ch string, payload any) {
	handler, ok := conn.server.eventHandlers[ch]
	if !ok {
		return
	}
	invokeEventHandlerSafely(conn.side.log, ch, handler, ctx, payload)
}

// Close stops accepting new inbound envelopes, waits for any
// handleRPCRequest/handleEvent calls already in flight to finish
// (bounded by ctx — if ctx expires first, Close proceeds anyway), then closes
// the underlying transport, rejects every outstanding server-initiated
// pending call with a shutdown error, and removes this connection from
// its server's connection set. It returns the transport close error if
// there is one, otherwise ctx.Err() when the drain was cut short. The
// pending-table rejections are not part of the returned error.
// Idempotent.
func (conn *Connection) Close(ctx context.Context) error {
	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return nil
	}
	conn.closed = true
	conn.mu.Unlock()

	if conn.disposeOnMsg != nil {
		conn.disposeOnMsg()
	}

	drainErr := conn.side.drain(ctx)

	conn.server.mu.Lock()
	delete(conn.server.connections, conn)
	conn.server.mu.Unlock()

	closeErr := conn.t.Close(1000, "connection closed")
	conn.table.AbandonAll()

	if closeErr != nil {
		return closeErr
	}
	return drainErr
}

// PendingCount reports the number of outstanding server-initiated RPC
// calls on this connection.
func (conn *Connection) PendingCount() int {
	return conn.table.Len()
}
