package session

import (
	"context"
	"fmt"
	"testing"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.WithLock(ctx, sid, func(context.Context) error { return nil })
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("memory leak detected: %d locks remaining after %d sessions", lockCount, count)
	}
}
