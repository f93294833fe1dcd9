package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	c, err := NewCache(Config{GCInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestKV_SetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKV_TTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 30*time.Millisecond))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	time.Sleep(50 * time.Millisecond)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKV_DelAndExpire(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	require.NoError(t, c.Del(ctx, "a", "b"))
	ok, _ := c.Exists(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "c", "3", 0))
	require.NoError(t, c.Expire(ctx, "c", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	_, err := c.Get(ctx, "c")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, c.Expire(ctx, "missing", time.Second), ErrNotFound)
}

func TestZSet_Ordering(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.ZAdd(ctx, "rank", 3, "cafe"))
	require.NoError(t, c.ZAdd(ctx, "rank", 1, "park"))
	require.NoError(t, c.ZAdd(ctx, "rank", 2, "gym"))

	members, err := c.ZRevRange(ctx, "rank", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"cafe", "gym", "park"}, members)

	// Re-adding an existing member updates its score in place.
	require.NoError(t, c.ZAdd(ctx, "rank", 10, "park"))
	members, _ = c.ZRevRange(ctx, "rank", 0, 1)
	assert.Equal(t, []string{"park", "cafe"}, members)

	score, err := c.ZScore(ctx, "rank", "park")
	require.NoError(t, err)
	assert.Equal(t, float64(10), score)

	_, err = c.ZScore(ctx, "rank", "library")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestZSet_Clear(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.ZAdd(ctx, "rank", 1, "cafe"))
	require.NoError(t, c.ZClear(ctx, "rank"))
	members, err := c.ZRevRange(ctx, "rank", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestPubSub_FanOut(t *testing.T) {
	ps := NewPubSub(8)
	ctx := context.Background()

	ch1, cancel1, err := ps.Subscribe(ctx, "presence")
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := ps.Subscribe(ctx, "presence")
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, ps.Publish(ctx, "presence", "hello"))

	for _, ch := range []<-chan *LocalMessage{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "presence", msg.Channel)
			assert.Equal(t, "hello", msg.Payload)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
}

func TestPubSub_CancelStopsDelivery(t *testing.T) {
	ps := NewPubSub(8)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "presence")
	require.NoError(t, err)
	cancel()

	require.NoError(t, ps.Publish(ctx, "presence", "late"))

	// The channel is closed and drained.
	msg, ok := <-ch
	assert.Nil(t, msg)
	assert.False(t, ok)
}

func TestPubSub_ChannelIsolation(t *testing.T) {
	ps := NewPubSub(8)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "presence")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "other", "noise"))

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %q", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}
