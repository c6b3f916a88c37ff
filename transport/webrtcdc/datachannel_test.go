package webrtcdc

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

// establish negotiates a local offerer/answerer PeerConnection pair over
// an in-process signaling exchange and returns the two ends of a single
// data channel, wrapped in Conn.
func establish(t *testing.T) (offererConn, answererConn *Conn) {
	t.Helper()

	offerPC, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = offerPC.Close() })

	answerPC, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = answerPC.Close() })

	dc, err := offerPC.CreateDataChannel("kataribe", nil)
	require.NoError(t, err)

	answererReady := make(chan *webrtc.DataChannel, 1)
	answerPC.OnDataChannel(func(d *webrtc.DataChannel) {
		answererReady <- d
	})

	offerPC.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			_ = answerPC.AddICECandidate(c.ToJSON())
		}
	})
	answerPC.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			_ = offerPC.AddICECandidate(c.ToJSON())
		}
	})

	offer, err := offerPC.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, offerPC.SetLocalDescription(offer))
	require.NoError(t, answerPC.SetRemoteDescription(offer))

	answer, err := answerPC.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, answerPC.SetLocalDescription(answer))
	require.NoError(t, offerPC.SetRemoteDescription(answer))

	var answererDC *webrtc.DataChannel
	select {
	case answererDC = <-answererReady:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for answerer data channel")
	}

	return New(dc), New(answererDC)
}

func TestSendDeliversAcrossDataChannel(t *testing.T) {
	offerer, answerer := establish(t)

	require.Eventually(t, offerer.IsOpen, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, answerer.IsOpen, 5*time.Second, 10*time.Millisecond)

	received := make(chan any, 1)
	answerer.OnMessage(func(payload any) { received <- payload })

	require.NoError(t, offerer.Send(context.Background(), map[string]any{"hello": "webrtc"}))

	select {
	case payload := <-received:
		m, ok := payload.(map[string]any)
		require.True(t, ok)
		require.Equal(t, "webrtc", m["hello"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSendBeforeOpenFails(t *testing.T) {
	offerPC, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer offerPC.Close()

	dc, err := offerPC.CreateDataChannel("kataribe", nil)
	require.NoError(t, err)

	conn := New(dc)
	err = conn.Send(context.Background(), map[string]any{"a": 1})
	require.Error(t, err)
}
