// Package pool ties presence discovery and balancing together: Pool
// picks an instance, dials it via a caller-supplied Dialer, and hands
// back a ready runtime.Client. It never retries a failed dial or resumes
// a dropped session — that scope belongs to the caller, not the pool.
package pool

import (
	"context"
	"fmt"

	"github.com/yamayuski/kataribe/contract"
	"github.com/yamayuski/kataribe/presence"
	"github.com/yamayuski/kataribe/runtime"
	"github.com/yamayuski/kataribe/transport"
)

// Dialer opens a transport.Transport to the given presence.Instance.
// Its shape deliberately says nothing about the underlying transport
// (framedtcp.New over a net.Dial, wsconn.New over a websocket.Dialer,
// ...) so Pool stays transport-agnostic, matching the runtime it wraps.
type Dialer func(ctx context.Context, inst presence.Instance) (transport.Transport, error)

// Pool discovers server instances for one service and dials whichever
// one the configured Balancer selects.
type Pool struct {
	registry    presence.Registry
	serviceName string
	balancer    Balancer
	dial        Dialer
	contract    *contract.Contract
	handlers    map[string]runtime.RPCHandler
	opts        runtime.Options
}

// New builds a Pool balancing across serviceName's registered instances.
func New(registry presence.Registry, serviceName string, balancer Balancer, dial Dialer, c *contract.Contract, handlers map[string]runtime.RPCHandler, opts runtime.Options) *Pool {
	return &Pool{
		registry:    registry,
		serviceName: serviceName,
		balancer:    balancer,
		dial:        dial,
		contract:    c,
		handlers:    handlers,
		opts:        opts,
	}
}

// Dial discovers the current instance set, asks the balancer to pick
// one, dials it, and returns a runtime.Client wired against it.
func (p *Pool) Dial(ctx context.Context) (*runtime.Client, error) {
	instances, err := p.registry.Discover(p.serviceName)
	if err != nil {
		return nil, fmt.Errorf("pool: discover %q: %w", p.serviceName, err)
	}

	inst, err := p.balancer.Pick(instances)
	if err != nil {
		return nil, fmt.Errorf("pool: pick instance for %q: %w", p.serviceName, err)
	}

	t, err := p.dial(ctx, *inst)
	if err != nil {
		return nil, fmt.Errorf("pool: dial %s: %w", inst.Addr, err)
	}

	return runtime.NewClient(t, p.contract, p.handlers, p.opts), nil
}
