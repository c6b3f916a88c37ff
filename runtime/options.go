// Package runtime implements the client and server dispatch state
// machines that tie together the envelope model, the contract registry,
// the middleware pipeline, and the pending-call table into the two
// symmetric peer roles described by the protocol.
package runtime

import (
	"time"

	"github.com/yamayuski/kataribe/envelope"
	"github.com/yamayuski/kataribe/idgen"
	"github.com/yamayuski/kataribe/logging"
	"github.com/yamayuski/kataribe/middleware"
)

// Options is the configuration surface shared by Client and Server:
// protocol version, per-RPC timeout, the correlation-id generator, the
// ordered middleware list, advertised capabilities, the unknown-
// envelope hook, and the logger.
type Options struct {
	// Version is stamped on every outbound envelope's V field.
	// Defaults to 1.
	Version int

	// Timeout bounds how long an outbound RPC call waits for a
	// response before its pending entry is rejected with a timeout
	// error. Zero (the default) disables the timeout.
	Timeout time.Duration

	// GenerateID overrides the correlation-id generator. Defaults to
	// idgen.Default, a cryptographically random UUID.
	GenerateID func() string

	// Middlewares is the ordered list run over every outbound and
	// inbound envelope. Defaults to empty.
	Middlewares []middleware.Func

	// Features is the capability list advertised in this side's hello
	// envelope.
	Features []string

	// OnUnknownEnvelope is invoked for envelope kinds the dispatcher
	// does not recognize. May be nil.
	OnUnknownEnvelope func(env *envelope.Envelope)

	// Logger receives debug/info/warn/error messages from the runtime
	// and its middleware. Defaults to logging.NewDefault().
	Logger logging.Logger
}

func (o Options) withDefaults() Options {
	if o.Version == 0 {
		o.Version = 1
	}
	if o.GenerateID == nil {
		o.GenerateID = idgen.Default
	}
	if o.Logger == nil {
		o.Logger = logging.NewDefault()
	}
	return o
}
