package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPoller() *Poller {
	logger, _ := zap.NewDevelopment()
	return New(logger)
}

func TestAttach_ImmediateFetch(t *testing.T) {
	p := newPoller()
	applied := make(chan interface{}, 1)

	h := p.Attach(func(ctx context.Context) (interface{}, error) {
		return 42, nil
	}, func(v interface{}) {
		applied <- v
	}, time.Hour)
	defer h.Detach()

	select {
	case v := <-applied:
		assert.Equal(t, 42, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch before first tick")
	}
}

func TestAttach_FiresPerInterval(t *testing.T) {
	p := newPoller()
	var count atomic.Int64

	h := p.Attach(func(ctx context.Context) (interface{}, error) {
		count.Add(1)
		return nil, nil
	}, nil, 20*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	h.Detach()
	n := count.Load()
	assert.GreaterOrEqual(t, n, int64(3))

	// After detach the loop is gone.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, count.Load())
	assert.False(t, h.Active())
}

func TestAttach_SkipsTickWhileInFlight(t *testing.T) {
	p := newPoller()
	var starts atomic.Int64
	release := make(chan struct{})

	h := p.Attach(func(ctx context.Context) (interface{}, error) {
		starts.Add(1)
		<-release
		return nil, nil
	}, nil, 10*time.Millisecond)

	// Many ticks elapse while the first fetch blocks; none may start a
	// second fetch.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), starts.Load())

	close(release)
	h.Detach()
}

func TestDetach_NoCallbackAfterReturn(t *testing.T) {
	p := newPoller()
	var applied atomic.Bool
	started := make(chan struct{})
	release := make(chan struct{})

	h := p.Attach(func(ctx context.Context) (interface{}, error) {
		close(started)
		<-release
		return "late", nil
	}, func(v interface{}) {
		applied.Store(true)
	}, time.Hour)

	<-started
	h.Detach()
	close(release)

	// The in-flight fetch completes after detach; its result must be
	// discarded.
	time.Sleep(100 * time.Millisecond)
	assert.False(t, applied.Load())
}

func TestDetach_Idempotent(t *testing.T) {
	p := newPoller()
	h := p.Attach(func(ctx context.Context) (interface{}, error) { return nil, nil }, nil, time.Hour)

	h.Detach()
	h.Detach()
	p.Detach(h)
	assert.False(t, h.Active())
}

func TestHandle_StickyErrorClearedOnSuccess(t *testing.T) {
	p := newPoller()
	var calls atomic.Int64
	boom := errors.New("boom")

	h := p.Attach(func(ctx context.Context) (interface{}, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return nil, nil
	}, nil, 20*time.Millisecond)
	defer h.Detach()

	require.Eventually(t, func() bool {
		return errors.Is(h.Err(), boom)
	}, 2*time.Second, 5*time.Millisecond)

	// The loop keeps retrying and the next success clears the error.
	require.Eventually(t, func() bool {
		return calls.Load() >= 2 && h.Err() == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAttach_FetchSeesCancelledContextAfterDetach(t *testing.T) {
	p := newPoller()
	ctxCh := make(chan context.Context, 1)

	h := p.Attach(func(ctx context.Context) (interface{}, error) {
		ctxCh <- ctx
		return nil, nil
	}, nil, time.Hour)

	ctx := <-ctxCh
	h.Detach()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("fetch context not cancelled by detach")
	}
}
