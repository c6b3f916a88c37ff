package middleware

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimit returns a middleware that enforces a token-bucket limit of r
// events per second (burst b) per channel (envelope.Ch). Hello envelopes
// carry no channel and are never limited. When a channel's bucket is
// exhausted the middleware returns an error, which — per the pipeline's
// error semantics — fails the send on the outbound path or causes the
// envelope to be logged and dropped on the inbound path.
func RateLimit(r float64, b int) Func {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(ch string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[ch]
		if !ok {
			l = rate.NewLimiter(rate.Limit(r), b)
			limiters[ch] = l
		}
		return l
	}

	return func(_ context.Context, ec *EnvelopeContext) error {
		if ec.Envelope.Ch == "" {
			return nil
		}
		if !limiterFor(ec.Envelope.Ch).Allow() {
			return fmt.Errorf("middleware: rate limit exceeded for channel %q", ec.Envelope.Ch)
		}
		return nil
	}
}
