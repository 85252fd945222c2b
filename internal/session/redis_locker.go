package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"hestia.local/dispatch/internal/ids"
)

const (
	defaultLockTTL    = 30 * time.Second
	defaultLockRetry  = 50 * time.Millisecond
	defaultLockPrefix = "hestia:session-lock:"
)

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`

// RedisLocker serialises senders across instances with SET NX PX.
type RedisLocker struct {
	client redis.Cmdable
	logger *log.Logger
	ttl    time.Duration
	retry  time.Duration
	prefix string
	token  func() string
}

type RedisLockerOption func(*RedisLocker)

func WithLockTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithLockRetry(retry time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if retry > 0 {
			l.retry = retry
		}
	}
}

// WithLockPrefix namespaces lock keys so deployments sharing a redis do not
// contend. An empty prefix keeps the default.
func WithLockPrefix(prefix string) RedisLockerOption {
	return func(l *RedisLocker) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

func WithLockToken(token func() string) RedisLockerOption {
	return func(l *RedisLocker) {
		if token != nil {
			l.token = token
		}
	}
}

func NewRedisLocker(client redis.Cmdable, logger *log.Logger, opts ...RedisLockerOption) *RedisLocker {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	l := &RedisLocker{
		client: client,
		logger: logger,
		ttl:    defaultLockTTL,
		retry:  defaultLockRetry,
		prefix: defaultLockPrefix,
		token:  ids.New,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.prefix + key
	token := l.token()
	for {
		ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := l.client.Eval(releaseCtx, releaseScript, []string{full}, token).Err(); err != nil {
				l.logger.Printf("release lock failed key=%s err=%v", key, err)
			}
		})
	}, nil
}
