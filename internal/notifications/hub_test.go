package notifications

import (
	"context"
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

func drain(c *Client) []string {
	var out []string
	for {
		select {
		case msg := <-c.send:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(10, false, nil)
	require.NoError(t, err)
	b, err := hub.Register(10, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.ConnectionCount())

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.ConnectionCount())

	hub.UnregisterClient(b)
	assert.Equal(t, 0, hub.ConnectionCount())
	_ = hub.Shutdown(context.Background())
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(7, false, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(7, false, nil)
	assert.ErrorIs(t, err, errUserLimit)

	_, err = hub.Register(8, false, nil)
	assert.NoError(t, err)
	_ = hub.Shutdown(context.Background())
}

func TestHub_RejectsAfterShutdown(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.Shutdown(context.Background()))
	_, err := hub.Register(1, false, nil)
	assert.ErrorIs(t, err, errServerLimit)
}

func TestHub_DeliverRoutesByChannel(t *testing.T) {
	hub := NewHub()
	alumni, _ := hub.Register(1, false, nil)
	faculty, _ := hub.Register(2, true, nil)

	hub.Deliver(UserChannel(1), "direct")
	hub.Deliver(moderatorChannel, "queue")
	hub.Deliver(broadcastChannel, "all")
	hub.Deliver("notifications:user:abc", "ignored")

	assert.Equal(t, []string{"direct", "all"}, drain(alumni))
	assert.Equal(t, []string{"queue", "all"}, drain(faculty))
	_ = hub.Shutdown(context.Background())
}

func TestClient_DeliverDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, _ := hub.Register(3, false, nil)
	for i := 0; i < cap(c.send); i++ {
		require.True(t, c.Deliver([]byte("x")))
	}
	assert.False(t, c.Deliver([]byte("overflow")))
	assert.Len(t, c.send, cap(c.send))
	_ = hub.Shutdown(context.Background())
}

func TestClient_DeliverAfterUnregister(t *testing.T) {
	hub := NewHub()
	c, _ := hub.Register(4, true, nil)
	assert.Equal(t, uint(4), c.UserID())
	assert.True(t, c.Moderator())

	hub.UnregisterClient(c)
	assert.False(t, c.Deliver([]byte("late")))
	assert.Empty(t, drain(c))
}

func TestHub_StartWiringForwardsRedisMessages(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub()
	client, err := hub.Register(42, false, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	// PSubscribe is asynchronous; publish until the subscriber is attached.
	assert.Eventually(t, func() bool {
		_ = n.PublishUser(context.Background(), 42, `{"type":"ping"}`)
		select {
		case msg := <-client.send:
			return string(msg) == `{"type":"ping"}`
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)

	_ = hub.Shutdown(context.Background())
}
