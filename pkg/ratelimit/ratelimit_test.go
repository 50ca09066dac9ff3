package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllow(t *testing.T) {
	tb := NewTokenBucket(2, 1, time.Second)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
	assert.Equal(t, 0, tb.GetRemaining())
	assert.True(t, tb.GetResetTime().After(time.Now()))
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 0, time.Hour)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestTokenBucketWaitRefills(t *testing.T) {
	tb := NewTokenBucket(1, 50, time.Second)
	require.True(t, tb.Allow())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, tb.Wait(ctx))
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(2, 50*time.Millisecond)
	assert.True(t, sw.Allow())
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())
	assert.Equal(t, 0, sw.GetRemaining())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sw.Wait(ctx))
}

func TestManager(t *testing.T) {
	m := NewManager(Limits{UploadsPerMin: 1})
	assert.Nil(t, m.Get(RPCRead))
	assert.True(t, m.Allow(RPCRead))
	assert.NoError(t, m.Wait(context.Background(), RPCRead))

	assert.True(t, m.Allow(APIUpload))
	assert.False(t, m.Allow(APIUpload))

	m.Set(RPCRead, NewTokenBucket(1, 1, time.Second))
	assert.NotNil(t, m.Get(RPCRead))
}
