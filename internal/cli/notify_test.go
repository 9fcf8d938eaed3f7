package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/medibox/internal/store"
)

func TestNotifyRecipient(t *testing.T) {
	db := tempDB(t)
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), "User/alice/registrationToken", map[string]any{
		"phone":  "tok-1",
		"tablet": "tok-2",
	}))
	require.NoError(t, st.Close())

	out, err := execute(t, NewNotifyCommand(testRoot(t, "text")), "--db", db, "User/alice")
	require.NoError(t, err)
	assert.Equal(t, "User/alice: 2 tokens, 2 delivered, 0 failed\n", out)

	out, err = execute(t, NewNotifyCommand(testRoot(t, "json")), "--db", db, "User/alice")
	require.NoError(t, err)
	var resp struct {
		Status string         `json:"status"`
		Data   DeliveryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Report.Delivered)
}

func TestNotifyWithoutTokens(t *testing.T) {
	out, err := execute(t, NewNotifyCommand(testRoot(t, "text")), "--db", tempDB(t), "Pharmacy/pharmA")
	require.NoError(t, err)
	assert.Equal(t, "Pharmacy/pharmA: no registration token\n", out)
}

func TestNotifyTopic(t *testing.T) {
	out, err := execute(t, NewNotifyCommand(testRoot(t, "text")), "--db", tempDB(t), "--topic", "medicineOrder")
	require.NoError(t, err)
	assert.Equal(t, "topic medicineOrder: 1 delivered, 0 failed\n", out)
}

func TestNotifyRejectsBadTargets(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"nothing", nil, "either a recipient or --topic"},
		{"both", []string{"User/alice", "--topic", "t"}, "either a recipient or --topic"},
		{"no group", []string{"alice"}, "must be User/<name> or Pharmacy/<name>"},
		{"nested name", []string{"User/alice/phone"}, "must be User/<name> or Pharmacy/<name>"},
		{"unknown group", []string{"Courier/bob"}, "unknown recipient group"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", tempDB(t)}, tt.args...)
			_, err := execute(t, NewNotifyCommand(testRoot(t, "text")), args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
