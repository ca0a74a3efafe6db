package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/ports/repository"
	"tappay-gateway/internal/infra/metrics"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

var _ Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	cli     *redis.Client
	retries int
	wait    time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, retries: 5, wait: 50 * time.Millisecond}
}

// TryLock sets key to a fresh token if absent, retrying a few times while
// another holder owns it.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.retries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
		} else if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.wait):
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("redis lock %s: %w", key, lastErr)
	}
	return "", domain.ErrLeaseNotAcquired
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock deletes key only if it still holds token.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}

var _ repository.PaymentLocker = (*PaymentLease)(nil)

// PaymentLease adapts a Locker to repository.PaymentLocker.
type PaymentLease struct {
	locker Locker
	ttl    time.Duration
}

func NewPaymentLease(l Locker, ttl time.Duration) *PaymentLease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PaymentLease{locker: l, ttl: ttl}
}

func paymentKey(id int64) string { return fmt.Sprintf("tappay:lease:payment:%d", id) }

func (p *PaymentLease) Acquire(ctx context.Context, paymentID int64) (func(), error) {
	key := paymentKey(paymentID)
	token, err := p.locker.TryLock(ctx, key, p.ttl)
	switch {
	case err == nil:
		metrics.IncLeaseAcquire("ok")
	case err == domain.ErrLeaseNotAcquired:
		metrics.IncLeaseAcquire("busy")
		return nil, err
	default:
		metrics.IncLeaseAcquire("error")
		return nil, err
	}
	return func() {
		// The request context may already be cancelled; release on a short detached one.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.locker.Unlock(ctx, key, token)
	}, nil
}

var _ repository.PaymentLocker = (*LocalLease)(nil)

// LocalLease serialises payments within one process. Used when Redis is not configured.
type LocalLease struct {
	mu   sync.Mutex
	held map[int64]chan struct{}
}

func NewLocalLease() *LocalLease {
	return &LocalLease{held: map[int64]chan struct{}{}}
}

func (l *LocalLease) Acquire(ctx context.Context, paymentID int64) (func(), error) {
	for {
		l.mu.Lock()
		ch, busy := l.held[paymentID]
		if !busy {
			done := make(chan struct{})
			l.held[paymentID] = done
			l.mu.Unlock()
			metrics.IncLeaseAcquire("ok")
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, paymentID)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			metrics.IncLeaseAcquire("busy")
			return nil, domain.ErrLeaseNotAcquired
		}
	}
}
