package pending

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDeliversPayload(t *testing.T) {
	tbl := New()
	var got any
	done := make(chan struct{})
	tbl.Register("id-1", "add", func(p any) { got = p; close(done) }, func(error) {}, 0)

	tbl.Resolve("id-1", map[string]any{"sum": 5})
	<-done

	assert.Equal(t, map[string]any{"sum": 5}, got)
	assert.Equal(t, 0, tbl.Len())
}

func TestRejectDeliversError(t *testing.T) {
	tbl := New()
	var gotErr error
	done := make(chan struct{})
	tbl.Register("id-1", "add", func(any) {}, func(err error) { gotErr = err; close(done) }, 0)

	tbl.Reject("id-1", "boom")
	<-done

	require.Error(t, gotErr)
	assert.Equal(t, "boom", gotErr.Error())
}

func TestUnknownIDIsDropped(t *testing.T) {
	tbl := New()
	assert.NotPanics(t, func() {
		tbl.Resolve("nope", "x")
		tbl.Reject("nope", "y")
	})
}

func TestLateResolveAfterTimeoutIsDropped(t *testing.T) {
	tbl := New()
	var mu sync.Mutex
	rejections := 0
	resolutions := 0

	tbl.Register("id-1", "slow",
		func(any) { mu.Lock(); resolutions++; mu.Unlock() },
		func(error) { mu.Lock(); rejections++; mu.Unlock() },
		20*time.Millisecond,
	)

	time.Sleep(60 * time.Millisecond)
	tbl.Resolve("id-1", "too late")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, rejections)
	assert.Equal(t, 0, resolutions)
}

func TestTimeoutNamesMethod(t *testing.T) {
	tbl := New()
	errCh := make(chan error, 1)
	tbl.Register("id-1", "slow", func(any) {}, func(err error) { errCh <- err }, 10*time.Millisecond)

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.Contains(t, err.Error(), "slow")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for rejection")
	}
}

func TestAbandonAllRejectsEveryEntry(t *testing.T) {
	tbl := New()
	var mu sync.Mutex
	rejections := map[string]error{}

	for _, id := range []string{"a", "b", "c"} {
		id := id
		tbl.Register(id, "m", func(any) {}, func(err error) {
			mu.Lock()
			rejections[id] = err
			mu.Unlock()
		}, time.Minute)
	}

	aggregate := tbl.AbandonAll()
	require.Error(t, aggregate)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, rejections, 3)
	for _, err := range rejections {
		assert.ErrorIs(t, err, ErrShutdown)
	}
	assert.Equal(t, 0, tbl.Len())
}

func TestCancelRejectsWithoutSettlePath(t *testing.T) {
	tbl := New()
	custom := errors.New("validation failed")
	errCh := make(chan error, 1)
	tbl.Register("id-1", "add", func(any) {}, func(err error) { errCh <- err }, 0)

	tbl.Cancel("id-1", custom)
	assert.Equal(t, custom, <-errCh)
	assert.Equal(t, 0, tbl.Len())
}
