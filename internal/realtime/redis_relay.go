package realtime

import (
	"context"
	"strconv"
	"time"

	"log/slog"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// RedisRelay relays events over Redis pub/sub and keeps per-replica
// presence leases that lapse unless renewed.
type RedisRelay struct {
	client         *redis.Client
	channel        string
	presencePrefix string
	replica        string
	ttl            time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewRedisRelay connects to Redis and verifies the connection.
func NewRedisRelay(addr, password string, db int, channel string, logger *slog.Logger) (*RedisRelay, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	replica := uuid.NewString()
	logger.Info("realtime relay connected", "replica", replica, "presence_ttl", PresenceTTL)
	return &RedisRelay{
		client:         client,
		channel:        channel,
		presencePrefix: channel + ":presence:",
		replica:        replica,
		ttl:            PresenceTTL,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// Publish sends payload to every subscribed replica.
func (r *RedisRelay) Publish(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Subscribe blocks until ctx is cancelled.
func (r *RedisRelay) Subscribe(ctx context.Context, handler func([]byte)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("realtime relay subscribed", "channel", r.channel)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handler([]byte(msg.Payload))
		}
	}
}

// Touch renews this replica's lease for every user. Each user has a sorted
// set of replica ids scored by lease expiry in unix milliseconds. Expired
// members left behind by dead replicas are pruned on the way.
func (r *RedisRelay) Touch(ctx context.Context, userIDs []string) error {
	now := r.now()
	expires := float64(now.Add(r.ttl).UnixMilli())
	cutoff := leaseBound(now)
	pipe := r.client.Pipeline()
	for _, userID := range userIDs {
		key := r.presenceKey(userID)
		pipe.ZAdd(ctx, key, redis.Z{Score: expires, Member: r.replica})
		pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		pipe.PExpire(ctx, key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Release drops this replica's lease for userID.
func (r *RedisRelay) Release(ctx context.Context, userID string) error {
	return r.client.ZRem(ctx, r.presenceKey(userID), r.replica).Err()
}

// Online reports whether any replica holds an unexpired lease for userID.
func (r *RedisRelay) Online(ctx context.Context, userID string) (bool, error) {
	live, err := r.client.ZCount(ctx, r.presenceKey(userID), "("+leaseBound(r.now()), "+inf").Result()
	if err != nil {
		return false, err
	}
	return live > 0, nil
}

func (r *RedisRelay) presenceKey(userID string) string {
	return r.presencePrefix + userID
}

func leaseBound(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Close releases the Redis connection.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
