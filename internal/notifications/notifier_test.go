package notifications

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestNotifier_PushWithoutRedis(t *testing.T) {
	n := NewNotifier(nil)
	err := n.Push(context.Background(), 1, "test payload")
	assert.ErrorIs(t, err, ErrNoRedis)
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
	}
}

func TestHub_StartWiringForwardsToUser(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target, err := hub.Register(7, nil)
	require.NoError(t, err)
	other, err := hub.Register(8, nil)
	require.NoError(t, err)

	require.NoError(t, hub.StartWiring(ctx, n))
	require.NoError(t, n.Push(context.Background(), 7, `{"id":"a"}`))

	assert.Eventually(t, func() bool {
		return len(target.Send) == 1
	}, testEventuallyTimeout, testPollInterval)
	assert.Equal(t, `{"id":"a"}`, string(<-target.Send))
	assert.Empty(t, other.Send)
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	payloads := make(chan string, 2)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_ string, payload string) {
		atomic.AddInt32(&received, 1)
		payloads <- payload
	}))

	require.NoError(t, n.Push(context.Background(), 3, "before-cancel"))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) >= 1
	}, testEventuallyTimeout, testPollInterval)

	cancel()
	time.Sleep(20 * time.Millisecond)

	select {
	case <-payloads:
	default:
	}

	_ = n.Push(context.Background(), 3, "after-cancel")
	assert.Never(t, func() bool {
		select {
		case payload := <-payloads:
			return payload == "after-cancel"
		default:
			return false
		}
	}, 200*time.Millisecond, testPollInterval)
}
