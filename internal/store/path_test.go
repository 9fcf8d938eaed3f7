package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPath(t *testing.T) {
	segs, err := SplitPath("/User/alice/registrationToken/")
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "alice", "registrationToken"}, segs)

	segs, err = SplitPath("")
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestSplitPath_Invalid(t *testing.T) {
	tests := []string{
		"User//alice",
		"User/a.b",
		"User/$x",
		"User/[0]",
		"User/#tag",
	}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			_, err := SplitPath(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPath))
		})
	}
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "Medicine-Order/Active/o1", JoinPath("Medicine-Order", "/Active/", "", "o1"))
	assert.Equal(t, "", JoinPath())
}

func TestParsePattern_Match(t *testing.T) {
	p, err := ParsePattern("User/{name}/Medicine-Box/Compartment-Details/{pushId}/compartmentDetailsMap/{compartmentNumber}")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Len())

	params, ok := p.Match("User/alice/Medicine-Box/Compartment-Details/box1/compartmentDetailsMap/3")
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"name":              "alice",
		"pushId":            "box1",
		"compartmentNumber": "3",
	}, params)

	_, ok = p.Match("User/alice/Medicine-Box")
	assert.False(t, ok, "shorter path must not match")

	_, ok = p.Match("Pharmacy/alice/Medicine-Box/Compartment-Details/box1/compartmentDetailsMap/3")
	assert.False(t, ok, "literal mismatch must not match")
}

func TestParsePattern_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":              "",
		"empty wildcard":     "User/{}",
		"duplicate wildcard": "User/{id}/x/{id}",
		"bad literal":        "User/a.b",
	}
	for name, pattern := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePattern(pattern)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPath))
		})
	}
}
