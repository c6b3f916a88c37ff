package middleware

import (
	"context"
	"time"

	"github.com/yamayuski/kataribe/logging"
)

// SlowCallWarning returns a middleware that warns when an envelope's
// declared send time (its ts field) is already older than threshold by
// the time it reaches this point in the pipeline — a sign that the
// sender, the network, or an earlier middleware is running hot. It
// never blocks, mutates, or drops the envelope; cancellation is
// reserved entirely for the pending-call table's timeout mechanism, not
// for middleware.
//
// This replaces the channel-and-select TimeoutMiddleware pattern
// (mini-rpc's middleware/timeout_middleware.go), which raced a business
// handler against a context deadline: Kataribe's middleware pipeline has
// no "next handler" to race against (see Pipeline.Run), so the same
// intent — flagging requests that are taking too long — is expressed
// here as an age check instead of a race.
func SlowCallWarning(log logging.Logger, threshold time.Duration) Func {
	return func(_ context.Context, ec *EnvelopeContext) error {
		age := time.Since(time.UnixMilli(ec.Envelope.TS))
		if age > threshold {
			log.Warn("envelope exceeded slow-call threshold",
				"direction", string(ec.Direction),
				"kind", string(ec.Envelope.Kind),
				"ch", ec.Envelope.Ch,
				"id", ec.Envelope.ID,
				"age", age,
				"threshold", threshold,
			)
		}
		return nil
	}
}
