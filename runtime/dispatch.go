package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yamayuski/kataribe/contract"
	"github.com/yamayuski/kataribe/envelope"
	"github.com/yamayuski/kataribe/logging"
	"github.com/yamayuski/kataribe/middleware"
	"github.com/yamayuski/kataribe/pending"
)

// side is the dispatch core shared by Client and the server-side
// Connection: both are, at the protocol level, one end of a symmetric
// link that sends rpc_req/event/hello and receives rpc_req/rpc_res/
// rpc_err/event/hello. They differ only in which contract map they
// dispatch inbound rpc_req against and where inbound events end up.
type side struct {
	version int
	log     logging.Logger

	// rpcHandlers is the handler-direction contract map: rpcToServer
	// for a Connection (the server handles requests the client
	// makes), rpcToClient for a Client (the client handles requests
	// the server makes).
	rpcDescriptors map[string]*contract.RPCDescriptor
	rpcHandlers    map[string]RPCHandler

	events map[string]*contract.EventDescriptor
	// dispatchEvent is called once an inbound event envelope has
	// passed validation; it is the only place Client and Connection
	// differ in event handling (dynamic per-channel subscriber list
	// vs. a static per-connection map).
	dispatchEvent func(ctx context.Context, ch string, payload any)

	pending  *pending.Table
	pipeline *middleware.Pipeline

	// rawSend runs the outbound middleware chain over env and hands
	// it to the transport. Supplied by the owning Client/Connection
	// since only it holds the transport reference.
	rawSend func(ctx context.Context, env *envelope.Envelope) error

	onUnknown func(env *envelope.Envelope)

	// inFlight tracks handleRPCRequest/handleEvent calls currently
	// running on this side, so Connection.Close can wait for them to
	// finish (bounded by a caller-supplied context) before abandoning
	// pending calls and tearing down the transport. Client.Close does not
	// wait on it.
	inFlight sync.WaitGroup
}

// drain waits for every in-flight handleRPCRequest/handleEvent call to
// finish, or for ctx to be done, whichever comes first. It returns
// ctx.Err() if the deadline elapsed with dispatches still running.
func (s *side) drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// decodeIncoming turns whatever the transport handed the core into an
// *envelope.Envelope, or reports ok=false for anything that should be
// silently dropped: malformed JSON, or a value that isn't an object.
func decodeIncoming(raw any) (env *envelope.Envelope, ok bool) {
	switch v := raw.(type) {
	case string:
		var e envelope.Envelope
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, false
		}
		return &e, true
	case []byte:
		var e envelope.Envelope
		if err := json.Unmarshal(v, &e); err != nil {
			return nil, false
		}
		return &e, true
	case *envelope.Envelope:
		if v == nil {
			return nil, false
		}
		return v, true
	case envelope.Envelope:
		return &v, true
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var e envelope.Envelope
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, false
		}
		return &e, true
	default:
		return nil, false
	}
}

// dispatch is the inbound entry point: decode, run inbound middleware,
// then route by kind.
func (s *side) dispatch(ctx context.Context, raw any) {
	env, ok := decodeIncoming(raw)
	if !ok {
		return
	}

	if s.pipeline != nil {
		if err := s.pipeline.Run(ctx, middleware.Inbound, env); err != nil {
			s.log.Error("inbound middleware rejected envelope", "error", err, "kind", string(env.Kind), "ch", env.Ch)
			return
		}
	}

	switch env.Kind {
	case envelope.KindRPCRequest:
		s.inFlight.Add(1)
		defer s.inFlight.Done()
		s.handleRPCRequest(ctx, env)
	case envelope.KindRPCResponse:
		s.pending.Resolve(env.ID, env.P)
	case envelope.KindRPCError:
		msg := env.M
		if msg == "" {
			msg = "rpc error"
		}
		s.pending.Reject(env.ID, msg)
	case envelope.KindEvent:
		s.inFlight.Add(1)
		defer s.inFlight.Done()
		s.handleEvent(ctx, env)
	case envelope.KindHello:
		s.log.Info("hello received", "features", env.Feat)
	default:
		if s.onUnknown != nil {
			s.onUnknown(env)
		}
	}
}

func (s *side) handleRPCRequest(ctx context.Context, req *envelope.Envelope) {
	desc, hasDesc := s.rpcDescriptors[req.Ch]
	handler, hasHandler := s.rpcHandlers[req.Ch]
	if !hasDesc || !hasHandler {
		s.sendRPCError(ctx, req, CodeNotFound, fmt.Sprintf("%s: %s", ErrNotFound, req.Ch))
		return
	}

	validatedReq, err := desc.ValidateRequest(ctx, req.P)
	if err != nil {
		s.sendRPCError(ctx, req, CodeValidation, err.Error())
		return
	}

	result, err := handler(ctx, validatedReq)
	if err != nil {
		s.sendRPCError(ctx, req, CodeInternal, err.Error())
		return
	}

	validatedResult, err := desc.ValidateResponse(ctx, result)
	if err != nil {
		s.sendRPCError(ctx, req, CodeValidation, err.Error())
		return
	}

	res := envelope.New(envelope.KindRPCResponse, s.version)
	res.ID = req.ID
	res.Ch = req.Ch
	res.P = validatedResult

	if err := s.rawSend(ctx, res); err != nil {
		s.log.Error("failed to send rpc response", "error", err, "ch", req.Ch, "id", req.ID)
	}
}

func (s *side) sendRPCError(ctx context.Context, req *envelope.Envelope, code, message string) {
	res := envelope.New(envelope.KindRPCError, s.version)
	res.ID = req.ID
	res.Ch = req.Ch
	res.Code = code
	res.M = message

	if err := s.rawSend(ctx, res); err != nil {
		s.log.Error("failed to send rpc error", "error", err, "ch", req.Ch, "id", req.ID)
	}
}

func (s *side) handleEvent(ctx context.Context, env *envelope.Envelope) {
	if env.Ch == "" {
		return
	}
	desc, ok := s.events[env.Ch]
	if !ok {
		return
	}

	var payload any = env.P
	if desc.Func != nil || desc.Schema != nil {
		validated, err := desc.Validate(ctx, env.P)
		if err != nil {
			s.log.Error("event validation failed", "ch", env.Ch, "error", err)
			return
		}
		payload = validated
	}

	if s.dispatchEvent != nil {
		s.dispatchEvent(ctx, env.Ch, payload)
	}
}

func invokeEventHandlerSafely(log logging.Logger, ch string, handler EventHandler, ctx context.Context, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("event handler panicked", "ch", ch, "panic", r)
		}
	}()
	handler(ctx, payload)
}
