package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTokens(t *testing.T) {
	base := "User/alice/registrationToken"

	tests := []struct {
		name  string
		value any
		want  []tokenRef
	}{
		{"absent", nil, nil},
		{"single string", "tok1", []tokenRef{{"tok1", base}}},
		{"blank string", "  ", nil},
		{
			name:  "set keyed by token",
			value: map[string]any{"tokB": true, "tokA": true, "off": false},
			want:  []tokenRef{{"tokA", base + "/tokA"}, {"tokB", base + "/tokB"}},
		},
		{
			name:  "named devices",
			value: map[string]any{"phone": "tok1", "tablet": "tok2"},
			want:  []tokenRef{{"tok1", base + "/phone"}, {"tok2", base + "/tablet"}},
		},
		{"unsupported scalar", float64(42), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveTokens(base, tt.value))
		})
	}
}

func TestDedupe(t *testing.T) {
	refs := []tokenRef{{"a", "p1"}, {"b", "p2"}, {"a", "p3"}}
	assert.Equal(t, []tokenRef{{"a", "p1"}, {"b", "p2"}}, dedupe(refs))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(&SendError{Code: CodeInvalidToken}))
	assert.True(t, IsPermanent(&SendError{Code: CodeNotRegistered}))
	assert.False(t, IsPermanent(&SendError{Code: CodeRateLimited}))
	assert.False(t, IsPermanent(&SendError{Code: CodeUnknown}))
	assert.False(t, IsPermanent(assert.AnError))
	assert.False(t, IsPermanent(nil))
}

func TestMessage_WithCopiesData(t *testing.T) {
	base := NewMessage(ActionMedicineRunOut, GroupUser, PriorityHigh, "t", "b")
	derived := base.With("id", "3").WithSender("")

	assert.Equal(t, "3", derived.Data["id"])
	assert.NotContains(t, base.Data, "id")
	assert.NotContains(t, derived.Data, KeySender, "empty values are omitted")
	assert.Equal(t, ActionMedicineRunOut, derived.Action())
	assert.Equal(t, "High", derived.Data[KeyPriority])
	assert.Equal(t, "User", derived.Data[KeyUserGroup])
}
