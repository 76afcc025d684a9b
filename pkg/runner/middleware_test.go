package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmationMiddleware(t *testing.T) {
	in := strings.NewReader("y\nno\n YES \n")
	var out bytes.Buffer
	confirm := ConfirmationMiddleware(in, &out)
	ctx := context.Background()

	allowed, err := confirm(ctx, Step{Index: 1, Command: "aspirate", Params: map[string]any{"volume": 10}})
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Contains(t, out.String(), "step 1: aspirate map[volume:10]")

	allowed, err = confirm(ctx, Step{Index: 2, Command: "dispense"})
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = confirm(ctx, Step{Index: 3, Command: "drop_tip"})
	require.NoError(t, err)
	assert.True(t, allowed)

	_, err = confirm(ctx, Step{Index: 4, Command: "home"})
	assert.Error(t, err, "closed input is a failure, not a denial")
}

func TestMultiInterceptor(t *testing.T) {
	ctx := context.Background()
	var calls []string
	named := func(name string, allow bool, err error) CommandInterceptor {
		return func(context.Context, Step) (bool, error) {
			calls = append(calls, name)
			return allow, err
		}
	}

	allowed, err := MultiInterceptor(named("a", true, nil), AutoApproveMiddleware(), named("b", true, nil))(ctx, Step{})
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, []string{"a", "b"}, calls)

	calls = nil
	allowed, err = MultiInterceptor(named("a", false, nil), named("b", true, nil))(ctx, Step{})
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, []string{"a"}, calls, "a denial short-circuits")

	boom := errors.New("boom")
	_, err = MultiInterceptor(named("a", true, boom))(ctx, Step{})
	assert.ErrorIs(t, err, boom)
}

func TestDenyCommands(t *testing.T) {
	deny := DenyCommands("pause", "delay")
	for cmd, want := range map[string]bool{"pause": false, "delay": false, "aspirate": true} {
		allowed, err := deny(context.Background(), Step{Command: cmd})
		require.NoError(t, err)
		assert.Equal(t, want, allowed, cmd)
	}
}
