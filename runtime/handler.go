package runtime

import "context"

// RPCHandler implements one endpoint of a contract's handler-direction
// RPC map: the server's rpcToServer handlers, or a client's rpcToClient
// handlers. It receives the already-validated request payload and
// returns the (not-yet-validated) response payload or an error.
type RPCHandler func(ctx context.Context, payload any) (any, error)

// EventHandler receives an already-validated event payload. Panics
// inside an EventHandler are recovered and logged by the dispatcher,
// never propagated and never allowed to stop sibling subscribers from
// running.
type EventHandler func(ctx context.Context, payload any)
