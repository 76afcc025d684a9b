package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTipStoreContract runs a suite of tests to verify that a TipStore implementation
// adheres to the defined interface contract.
func RunTipStoreContract(t *testing.T, store TipStore) {
	ctx := context.Background()
	rackID := "contract-rack-" + time.Now().Format("20060102150405")

	t.Run("Fresh rack has no used tips", func(t *testing.T) {
		used, err := store.Used(ctx, "fresh-"+rackID)
		require.NoError(t, err)
		assert.Empty(t, used)
	})

	t.Run("MarkUsed and Used", func(t *testing.T) {
		err := store.MarkUsed(ctx, rackID, []string{"A1", "B1"})
		require.NoError(t, err, "MarkUsed should not return error")

		used, err := store.Used(ctx, rackID)
		require.NoError(t, err)
		assert.True(t, used["A1"])
		assert.True(t, used["B1"])
		assert.False(t, used["C1"])
	})

	t.Run("MarkAvailable", func(t *testing.T) {
		require.NoError(t, store.MarkAvailable(ctx, rackID, []string{"A1"}))

		used, err := store.Used(ctx, rackID)
		require.NoError(t, err)
		assert.False(t, used["A1"])
		assert.True(t, used["B1"])
	})

	t.Run("Racks are isolated", func(t *testing.T) {
		other := "other-" + rackID
		require.NoError(t, store.MarkUsed(ctx, other, []string{"H12"}))

		used, err := store.Used(ctx, rackID)
		require.NoError(t, err)
		assert.False(t, used["H12"])
	})

	t.Run("Reset", func(t *testing.T) {
		require.NoError(t, store.Reset(ctx, rackID))

		used, err := store.Used(ctx, rackID)
		require.NoError(t, err)
		assert.Empty(t, used, "Used after Reset should be empty")
	})

	t.Run("Empty updates are no-ops", func(t *testing.T) {
		assert.NoError(t, store.MarkUsed(ctx, rackID, nil))
		assert.NoError(t, store.MarkAvailable(ctx, rackID, nil))
	})
}
