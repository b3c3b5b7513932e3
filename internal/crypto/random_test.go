package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateState(t *testing.T) {
	state, err := GenerateState(StateLength)
	require.NoError(t, err)
	assert.Len(t, state, 30)

	for _, r := range state {
		assert.True(t, strings.ContainsRune(stateAlphabet, r), "unexpected character %q", r)
	}

	// Each call generates a unique state
	state2, err := GenerateState(StateLength)
	require.NoError(t, err)
	assert.NotEqual(t, state, state2)
}

func TestGenerateState_InvalidLength(t *testing.T) {
	_, err := GenerateState(0)
	assert.Error(t, err)

	_, err = GenerateState(-5)
	assert.Error(t, err)
}

func TestEqualState(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		got      string
		want     bool
	}{
		{name: "match", expected: "abc123", got: "abc123", want: true},
		{name: "mismatch", expected: "abc123", got: "abc124", want: false},
		{name: "different_length", expected: "abc123", got: "abc", want: false},
		{name: "missing_returned_state", expected: "abc123", got: "", want: false},
		{name: "empty_expected_never_matches", expected: "", got: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EqualState(tt.expected, tt.got))
		})
	}
}
