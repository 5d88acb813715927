package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(1, nil)
	require.NoError(t, err)
	assert.True(t, hub.IsOnline(1))

	assert.Equal(t, 2, hub.Broadcast(1, "hello"))
	assert.Equal(t, "hello", string(<-a.Send))
	assert.Equal(t, "hello", string(<-b.Send))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.True(t, hub.IsOnline(1))
	hub.UnregisterClient(b)
	assert.False(t, hub.IsOnline(1))
	assert.Zero(t, hub.Broadcast(1, "nobody"))
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(2, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(2, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)

	_, err = hub.Register(3, nil)
	assert.NoError(t, err)
}

func TestHub_PushIsLocalDelivery(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(4, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Push(context.Background(), 4, "frame"))
	assert.Equal(t, "frame", string(<-c.Send))
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub()
	_, err := hub.Register(5, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.False(t, hub.IsOnline(5))

	_, err = hub.Register(5, nil)
	assert.Error(t, err)
}

func TestHub_ShutdownClosesSendChannels(t *testing.T) {
	hub := NewHub()
	first, err := hub.Register(7, nil)
	require.NoError(t, err)
	second, err := hub.Register(8, nil)
	require.NoError(t, err)
	require.True(t, first.TrySend([]byte("pending")))

	require.NoError(t, hub.Shutdown(context.Background()))

	// Queued frames drain before the close is observed.
	msg, ok := <-first.Send
	assert.True(t, ok)
	assert.Equal(t, "pending", string(msg))
	_, ok = <-first.Send
	assert.False(t, ok)
	_, ok = <-second.Send
	assert.False(t, ok)

	assert.NotPanics(t, second.CloseSend)
	assert.NotPanics(t, func() { second.TrySend([]byte("late")) })
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(6, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.TrySend([]byte("x")))
	}
	assert.False(t, c.TrySend([]byte("overflow")))
	assert.Len(t, c.Send, sendBuffer)
}

func TestClient_TrySendOnClosedChannel(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(9, nil)
	require.NoError(t, err)
	close(c.Send)

	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}
