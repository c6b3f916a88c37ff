package webtransport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipeStream adapts one end of a net.Pipe to the Stream interface so
// tests can exercise the adapter without a real QUIC connection.
type pipeStream struct {
	net.Conn
}

func newStreamPair() (Stream, Stream) {
	a, b := net.Pipe()
	return pipeStream{a}, pipeStream{b}
}

func TestSendAndReceiveLengthPrefixedFrame(t *testing.T) {
	sa, sb := newStreamPair()
	a := New(sa)
	b := New(sb)
	defer a.Close(0, "")
	defer b.Close(0, "")

	received := make(chan any, 1)
	b.OnMessage(func(payload any) { received <- payload })

	go func() {
		_ = a.Send(context.Background(), map[string]any{"hello": "webtransport"})
	}()

	select {
	case payload := <-received:
		m, ok := payload.(map[string]any)
		require.True(t, ok)
		require.Equal(t, "webtransport", m["hello"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestCloseMarksNotOpen(t *testing.T) {
	sa, sb := newStreamPair()
	a := New(sa)
	b := New(sb)
	defer b.Close(0, "")

	require.True(t, a.IsOpen())
	require.NoError(t, a.Close(0, "done"))
	require.False(t, a.IsOpen())

	require.Eventually(t, func() bool { return !b.IsOpen() }, time.Second, 10*time.Millisecond)
}
