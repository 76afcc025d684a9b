package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken with DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes access to a robot across API replicas.
type DistributedLocker interface {
	// Lock blocks until the robot identified by id is free or ctx is done.
	// The lock lapses after ttl unless the implementation renews it. The
	// returned UnlockFunc must be called.
	Lock(ctx context.Context, id string, ttl time.Duration) (UnlockFunc, error)
}
