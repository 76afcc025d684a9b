package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/aliquot/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// ErrLockAcquire is returned when Redis fails while taking a robot lock.
var ErrLockAcquire = errors.New("failed to acquire robot lock")

var (
	// releaseScript deletes the lock only while it still holds our token.
	releaseScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)
	// renewScript pushes the expiry out only while the lock is ours.
	renewScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)
)

// Locker implements ports.DistributedLocker so API replicas never drive the
// same robot at once. A held lock is renewed every ttl/2, since a protocol
// run can take far longer than the lease.
type Locker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithPollInterval sets how often a blocked Lock retries.
func WithPollInterval(d time.Duration) LockerOption {
	return func(l *Locker) { l.poll = d }
}

// NewLocker keeps its keys under prefix + "lock:".
func NewLocker(client *backend.Client, prefix string, opts ...LockerOption) *Locker {
	l := &Locker{client: client, prefix: prefix, poll: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key is the Redis key guarding the robot id.
func (l *Locker) Key(id string) string {
	return l.prefix + "lock:" + id
}

// Lock blocks until the robot is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, id string, ttl time.Duration) (ports.UnlockFunc, error) {
	key, token := l.Key(id), uuid.NewString()

	retry := time.NewTicker(l.poll)
	defer retry.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLockAcquire, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-retry.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	if ttl/2 > 0 {
		go l.renew(key, token, ttl, stop, done)
	} else {
		close(done) // no expiry, nothing to renew
	}

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
		})
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}

func (l *Locker) renew(key, token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), ttl/2)
			n, err := renewScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
			cancel()
			if err != nil || n == 0 {
				// lost the lease; the holder finds out on release
				return
			}
		}
	}
}
