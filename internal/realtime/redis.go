package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Amund211/gamegate/internal/logging"
	goredis "github.com/redis/go-redis/v9"
)

// RedisSource reads events from a per-user redis pub/sub channel named
// <prefix><userID>.
type RedisSource struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedisSource(rdb goredis.UniversalClient, prefix string) *RedisSource {
	return &RedisSource{
		rdb:    rdb,
		prefix: prefix,
	}
}

func (s *RedisSource) Channel(userID string) string {
	return s.prefix + userID
}

func (s *RedisSource) Subscribe(ctx context.Context, userID string, handle Handler) error {
	if handle == nil {
		return fmt.Errorf("handler required")
	}

	sub := s.rdb.Subscribe(ctx, s.Channel(userID))

	// Wait for the subscription confirmation so that no event published after
	// Subscribe returns is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		logger := logging.FromContext(ctx).With(slog.String("source", "redis"))
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok || msg == nil {
					return
				}
				event, err := Decode([]byte(msg.Payload))
				if err != nil {
					logger.WarnContext(ctx, "Ignoring malformed event", "error", err.Error())
					continue
				}
				handle(ctx, event)
			}
		}
	}()

	return nil
}
