package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/apierror"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Locker serializes allocation decisions per key (one lot, one request).
// It sits in front of the conditional SQL updates: the updates alone keep
// balances correct, the lock keeps concurrent approvals from wasting
// candidate lots on each other.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ErrLockTimeout is the cause of the error returned when a lock could not be
// obtained before the deadline. Callers see a retryable apierror conflict.
var ErrLockTimeout = errors.New("locker: could not obtain lock")

func lockBusy(key string) error {
	return apierror.Busy(ErrLockTimeout, "%s is busy, try again", key)
}

// ── In-process ───────────────────────────────────────────────────────────────

type keyLock struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is a per-key mutex for single-instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl, false)
		log.Debug().Err(ctx.Err()).Str("key", key).Msg("locker: gave up waiting")
		return nil, lockBusy(key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(key, kl, true) }) }, nil
}

func (l *LocalLocker) release(key string, kl *keyLock, held bool) {
	if held {
		<-kl.ch
	}
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// ── Distributed ──────────────────────────────────────────────────────────────

// RedisLocker backs Locker with bsm/redislock so several API instances share
// one allocation authority.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, prefix: "lock:"}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	// Retry until the caller's context expires; bounded by ttl when it has none.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ttl)
		defer cancel()
	}
	lock, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			return nil, lockBusy(key)
		}
		return nil, err
	}
	return func() {
		// Release with a fresh context; the caller's may already be cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn().Err(err).Str("key", key).Msg("locker: release failed")
		}
	}, nil
}

// NewLocker picks the implementation named by LOCK_BACKEND.
func NewLocker(backend string, rdb redis.UniversalClient, ttl time.Duration) Locker {
	if backend == "redis" && rdb != nil {
		return NewRedisLocker(rdb, ttl)
	}
	return NewLocalLocker()
}
