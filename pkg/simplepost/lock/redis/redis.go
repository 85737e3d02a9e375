// Package redis provides a per-key lock shared by every process using the
// same Redis instance.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL bounds how long a crashed holder can block a key. Live
	// holders renew it, so it need not cover the longest mutation.
	DefaultTTL = 30 * time.Second
	// DefaultRetryInterval is the pause between acquisition attempts.
	DefaultRetryInterval = 50 * time.Millisecond
	// DefaultPrefix namespaces lock keys.
	DefaultPrefix = "simplepost:lock:"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the expiry only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker acquires keys with SET NX PX and releases them with a
// token-checked delete. While a key is held its expiry is renewed every
// third of the TTL, so the TTL only bounds how long a crashed holder blocks.
type Locker struct {
	client        redis.UniversalClient
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
	logger        *slog.Logger
}

// Option configures a Locker
type Option func(*Locker)

// WithTTL sets the lock expiry
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets the pause between acquisition attempts
func WithRetryInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// WithPrefix sets the key namespace
func WithPrefix(prefix string) Option {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// WithLogger sets the logger used for release failures
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Locker on client
func New(client redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client:        client,
		prefix:        DefaultPrefix,
		ttl:           DefaultTTL,
		retryInterval: DefaultRetryInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewFromURL parses a redis:// URL and creates a Locker on a new client.
func NewFromURL(rawURL string, opts ...Option) (*Locker, error) {
	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	options.DialTimeout = 3 * time.Second
	options.ReadTimeout = 2 * time.Second
	options.WriteTimeout = 2 * time.Second
	return New(redis.NewClient(options), opts...), nil
}

// Lock blocks until key is held or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, ctxErr
			}
			return nil, err
		}
		if ok {
			stop := l.keepAlive(redisKey, token)
			return l.releaseFunc(redisKey, token, stop), nil
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// keepAlive renews the lease until the returned func is called or the key
// is found to belong to someone else.
func (l *Locker) keepAlive(redisKey, token string) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			renewCtx, renewCancel := context.WithTimeout(ctx, interval)
			n, err := renewScript.Run(renewCtx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
			renewCancel()
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				l.logger.Warn("Failed to renew lock", "key", redisKey, "err", err)
			case n == 0:
				l.logger.Error("Lock lost before release", "key", redisKey)
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (l *Locker) releaseFunc(redisKey, token string, stopRenewal func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			stopRenewal()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Error("Failed to release lock", "key", redisKey, "err", err)
			}
		})
	}
}

// Close closes the underlying client
func (l *Locker) Close() error {
	return l.client.Close()
}
