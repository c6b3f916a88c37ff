package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamayuski/kataribe/contract"
	"github.com/yamayuski/kataribe/envelope"
	"github.com/yamayuski/kataribe/logging"
	"github.com/yamayuski/kataribe/transport/transporttest"
)

func testContract(t *testing.T) *contract.Contract {
	t.Helper()
	c, err := contract.New(
		[]*contract.RPCDescriptor{contract.RPC("add")},
		nil,
		[]*contract.EventDescriptor{contract.Event("ping")},
	)
	require.NoError(t, err)
	return c
}

func TestNewClientSendsHello(t *testing.T) {
	a, b := transporttest.NewPipe()
	received := make(chan *envelope.Envelope, 1)
	b.OnMessage(func(payload any) {
		env, ok := decodeIncoming(payload)
		if ok {
			received <- env
		}
	})

	NewClient(a, testContract(t), nil, Options{Logger: logging.NewNoop()})

	select {
	case env := <-received:
		assert.Equal(t, envelope.KindHello, env.Kind)
		assert.Empty(t, env.ID)
		assert.Empty(t, env.Ch)
	case <-time.After(time.Second):
		t.Fatal("expected a hello envelope to have been sent during construction")
	}
}

func TestCallUnknownLocalMethodFailsFast(t *testing.T) {
	a, _ := transporttest.NewPipe()
	cl := NewClient(a, testContract(t), nil, Options{Logger: logging.NewNoop()})

	_, err := cl.Call(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscribeDisposeStopsFutureInvocations(t *testing.T) {
	cl := &Client{
		subscribers: make(map[string][]*clientSubscriber),
		opts:        Options{Logger: logging.NewNoop()},
	}

	var calls int
	dispose := cl.Subscribe("ping", func(context.Context, any) { calls++ })
	cl.dispatchEvent(context.Background(), "ping", nil)
	assert.Equal(t, 1, calls)

	dispose()
	cl.dispatchEvent(context.Background(), "ping", nil)
	assert.Equal(t, 1, calls)
}

func TestSubscribeMultipleInvokedInOrderAndIsolatedFromPanics(t *testing.T) {
	cl := &Client{
		subscribers: make(map[string][]*clientSubscriber),
		opts:        Options{Logger: logging.NewNoop()},
	}

	var order []int
	cl.Subscribe("ping", func(context.Context, any) { order = append(order, 1); panic("boom") })
	cl.Subscribe("ping", func(context.Context, any) { order = append(order, 2) })

	assert.NotPanics(t, func() {
		cl.dispatchEvent(context.Background(), "ping", nil)
	})
	assert.Equal(t, []int{1, 2}, order)
}
