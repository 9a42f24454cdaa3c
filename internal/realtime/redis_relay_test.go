package realtime

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Runs against a real server when GIGBOARD_TEST_REDIS_ADDR is set.
func TestRedisRelayLeasesExpire(t *testing.T) {
	addr := os.Getenv("GIGBOARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GIGBOARD_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	channel := "gigboard:test:" + time.Now().Format("150405.000000")
	crashed, err := NewRedisRelay(addr, "", 0, channel, discardLogger())
	require.NoError(t, err)
	defer crashed.Close()
	peer, err := NewRedisRelay(addr, "", 0, channel, discardLogger())
	require.NoError(t, err)
	defer peer.Close()

	now := time.Now()
	crashed.now = func() time.Time { return now }
	peer.now = func() time.Time { return now }

	require.NoError(t, crashed.Touch(ctx, []string{"user-1"}))
	online, err := peer.Online(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, online)

	// No Release ever arrives from the crashed replica.
	peer.now = func() time.Time { return now.Add(PresenceTTL + time.Second) }
	online, err = peer.Online(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, online)

	require.NoError(t, peer.Touch(ctx, []string{"user-1"}))
	require.NoError(t, peer.Release(ctx, "user-1"))
	online, err = peer.Online(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, online)
	n, err := peer.client.ZCard(ctx, peer.presenceKey("user-1")).Result()
	require.NoError(t, err)
	require.Zero(t, n, "stale lease of the crashed replica is pruned on touch")
}
