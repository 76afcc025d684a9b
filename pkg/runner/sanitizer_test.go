package runner

import (
	"strings"
	"testing"

	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Add 10 uL buffer", "Add 10 uL buffer"},
		{"newlines and tabs kept", "Spin down\n\tthen resume", "Spin down\n\tthen resume"},
		{"carriage return dropped", "yes\r\n", "yes\n"},
		{"escape sequence", "\x1b[31mHot plate\x1b[0m", "[31mHot plate[0m"},
		{"nul and bell", "Tube\x00 A1\x07", "Tube A1"},
		{"unicode", "Add 5 µL", "Add 5 µL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeInput_Limit(t *testing.T) {
	_, err := SanitizeInput(strings.Repeat("a", MaxTextSize))
	require.NoError(t, err)

	_, err = SanitizeInput(strings.Repeat("a", MaxTextSize+1))
	assert.ErrorIs(t, err, ErrTextTooLong)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	t.Setenv(envMaxTextSize, "8")
	_, err = SanitizeInput("123456789")
	assert.ErrorIs(t, err, ErrTextTooLong)

	t.Setenv(envMaxTextSize, "nope")
	_, err = SanitizeInput("123456789")
	assert.NoError(t, err)
}

func TestSanitizeInput_InvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("\xbd\xb2\x3d\xbc")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
