package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

// ChatLock serializes turns on one chat across service instances. It is a
// plain SET NX advisory lock with a TTL so a crashed holder cannot wedge the
// chat forever.
type ChatLock struct {
	client *redisv9.Client
	ttl    time.Duration
}

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewChatLock(client *redisv9.Client, ttl time.Duration) *ChatLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ChatLock{client: client, ttl: ttl}
}

// Acquire blocks until the per-chat lock is held or ctx is done. It returns a
// release token to pass back to Release.
func (l *ChatLock) Acquire(ctx context.Context, chatID uint) (string, error) {
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, l.key(chatID), token, l.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("acquire chat lock failed: %w", err)
		}
		if ok {
			return token, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("acquire chat lock failed: %w", ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (l *ChatLock) Release(ctx context.Context, chatID uint, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(chatID)}, token).Err(); err != nil && err != redisv9.Nil {
		return fmt.Errorf("release chat lock failed: %w", err)
	}
	return nil
}

func (l *ChatLock) key(chatID uint) string {
	return fmt.Sprintf("chat:lock:%d", chatID)
}
