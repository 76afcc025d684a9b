package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalManager_Reset(t *testing.T) {
	sm := NewSignalManager()
	defer sm.Stop()

	first := sm.Context()
	assert.NoError(t, first.Err())
	assert.False(t, sm.Interrupted())

	sm.Reset()
	assert.ErrorIs(t, first.Err(), context.Canceled, "the old context is released")
	assert.NoError(t, sm.Context().Err())

	sm.Stop()
	assert.True(t, sm.Interrupted())
}

func TestSignalManager_CheckRace(t *testing.T) {
	sm := NewSignalManager(WithGrace(20 * time.Millisecond))
	defer sm.Stop()

	start := time.Now()
	sm.CheckRace()
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	// an already cancelled context returns at once
	sm.Stop()
	start = time.Now()
	sm.CheckRace()
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}
