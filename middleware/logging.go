package middleware

import (
	"context"
	"time"

	"github.com/yamayuski/kataribe/logging"
)

// Logging returns a middleware that logs the channel, direction, and
// kind of every envelope that passes through it, along with how long
// ago the envelope was stamped (its ts field) — a rough measure of
// transit time from the sender's clock to this point in the pipeline.
func Logging(log logging.Logger) Func {
	return func(_ context.Context, ec *EnvelopeContext) error {
		age := time.Since(time.UnixMilli(ec.Envelope.TS))
		log.Debug("envelope",
			"direction", string(ec.Direction),
			"kind", string(ec.Envelope.Kind),
			"ch", ec.Envelope.Ch,
			"id", ec.Envelope.ID,
			"age", age,
		)
		return nil
	}
}
