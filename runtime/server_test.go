package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamayuski/kataribe/envelope"
	"github.com/yamayuski/kataribe/logging"
	"github.com/yamayuski/kataribe/transport/transporttest"
)

func TestAcceptAddsConnectionAndSendsHello(t *testing.T) {
	c := testContract(t)
	serverSide, clientSide := transporttest.NewPipe()

	received := make(chan *envelope.Envelope, 1)
	clientSide.OnMessage(func(payload any) {
		if env, ok := decodeIncoming(payload); ok {
			received <- env
		}
	})

	srv := NewServer(c, nil, nil, Options{Logger: logging.NewNoop(), Features: []string{"v1"}})
	conn := srv.Accept(serverSide)

	assert.Len(t, srv.Connections(), 1)

	select {
	case env := <-received:
		assert.Equal(t, envelope.KindHello, env.Kind)
		assert.Equal(t, []string{"v1"}, env.Feat)
	case <-time.After(time.Second):
		t.Fatal("expected a hello envelope")
	}

	require.NoError(t, conn.Close(context.Background()))
	assert.Empty(t, srv.Connections())
}

func TestServerCloseClosesAllConnections(t *testing.T) {
	c := testContract(t)
	srv := NewServer(c, nil, nil, Options{Logger: logging.NewNoop()})

	s1, _ := transporttest.NewPipe()
	s2, _ := transporttest.NewPipe()
	srv.Accept(s1)
	srv.Accept(s2)
	require.Len(t, srv.Connections(), 2)

	require.NoError(t, srv.Close(context.Background()))
	assert.Empty(t, srv.Connections())
	assert.False(t, s1.IsOpen())
	assert.False(t, s2.IsOpen())
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	c := testContract(t)
	srv := NewServer(c, nil, nil, Options{Logger: logging.NewNoop()})
	s1, _ := transporttest.NewPipe()
	conn := srv.Accept(s1)

	require.NoError(t, conn.Close(context.Background()))
	require.NoError(t, conn.Close(context.Background()))
}

func TestConnectionCloseWaitsForInFlightDispatchWithinDeadline(t *testing.T) {
	c := testContract(t)
	started := make(chan struct{})
	release := make(chan struct{})

	srv := NewServer(c, map[string]RPCHandler{
		"add": func(ctx context.Context, _ any) (any, error) {
			close(started)
			<-release
			return map[string]any{"sum": 0}, nil
		},
	}, nil, Options{Logger: logging.NewNoop()})

	serverSide, clientSide := transporttest.NewPipe()
	conn := srv.Accept(serverSide)

	env := envelope.New(envelope.KindRPCRequest, 1)
	env.ID = "1"
	env.Ch = "add"
	require.NoError(t, clientSide.Send(context.Background(), env))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := conn.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}
