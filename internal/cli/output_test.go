package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/medibox/internal/notify"
	"github.com/roach88/medibox/internal/store"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(WriteResult{Op: "set", Path: "a/b", Applied: true, Seq: 7, Changes: 2})
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   WriteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(7), resp.Data.Seq)
	assert.Equal(t, "a/b", resp.Data.Path)
}

func TestOutputFormatter_JSONFailureCarriesData(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	cause := fail(CodeDelivery, "no device accepted the notification", nil)
	err := formatter.Failure(DeliveryResult{Target: "User/alice", Report: notify.Report{Resolved: 1, Failed: 1}}, cause)
	assert.Same(t, cause, err)

	var resp struct {
		Status string         `json:"status"`
		Data   DeliveryResult `json:"data"`
		Error  *ResponseError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "User/alice", resp.Data.Target)
	assert.Equal(t, 1, resp.Data.Report.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeDelivery, resp.Error.Code)
	assert.Equal(t, "no device accepted the notification", resp.Error.Message)
}

func TestOutputFormatter_TextRenderers(t *testing.T) {
	tests := []struct {
		name    string
		data    any
		verbose bool
		want    string
	}{
		{
			"applied write",
			WriteResult{Op: "delete", Path: "x", Applied: true, Seq: 3, Changes: 1},
			false,
			"delete x: ok (seq 3, 1 changes)\n",
		},
		{"no-op write", WriteResult{Op: "merge", Path: "x"}, false, "merge x: nothing to change\n"},
		{"node", NodeResult{Path: "a", Value: map[string]any{"b": 1.0}}, false, "{\n  \"b\": 1\n}\n"},
		{"missing node", NodeResult{Path: "a"}, false, "null\n"},
		{
			"change log",
			ChangesResult{LastSeq: 9, Changes: []store.LogEntry{
				{Seq: 8, Path: "User/alice/registrationToken", After: "tok"},
				{Seq: 9, Path: "Medicine-Order/Active/o1", Before: map[string]any{"id": "o1"}},
			}},
			false,
			"[8] CREATE User/alice/registrationToken\n[9] DELETE Medicine-Order/Active/o1\n\n2 changes (last seq 9)\n",
		},
		{
			"change log verbose",
			ChangesResult{LastSeq: 2, Changes: []store.LogEntry{
				{Seq: 2, Path: "User/alice/registrationToken", Before: "old", After: "new"},
			}},
			true,
			"[2] UPDATE User/alice/registrationToken\n      before: \"old\"\n      after:  \"new\"\n\n1 changes (last seq 2)\n",
		},
		{
			"delivery",
			DeliveryResult{Target: "Pharmacy/pharmA", Report: notify.Report{Resolved: 3, Delivered: 2, Failed: 1, Pruned: 1}},
			false,
			"Pharmacy/pharmA: 3 tokens, 2 delivered, 1 failed, 1 pruned\n",
		},
		{"delivery without tokens", DeliveryResult{Target: "User/bob"}, false, "User/bob: no registration token\n"},
		{"topic delivery", DeliveryResult{Target: "topic medicineOrder", Report: notify.Report{Delivered: 1}}, false, "topic medicineOrder: 1 delivered, 0 failed\n"},
		{"test summary", TestResult{Passed: 2, Total: 2}, false, "\nTest Summary: 2 passed, 0 failed, 2 total\n✓ All scenarios passed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}
			require.NoError(t, formatter.Success(tt.data))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputFormatter_TextFailureRendersData(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Failure(TestResult{Passed: 1, Failed: 1, Total: 2}, fail(CodeTestFailed, "1 scenario(s) failed", nil))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "\nTest Summary: 1 passed, 1 failed, 2 total\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("golden updated: %s", "x.golden")

			// Diagnostics never corrupt JSON output.
			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "golden updated: x.golden")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestErrorCodeExitCodes(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeConfig, ExitCommandError},
		{CodeInput, ExitCommandError},
		{CodeDatabase, ExitCommandError},
		{CodeTransport, ExitCommandError},
		{CodeWrite, ExitCommandError},
		{CodeUnsettled, ExitFailure},
		{CodeDelivery, ExitFailure},
		{CodeServer, ExitFailure},
		{CodeTestFailed, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(fail(tt.code, "x", nil)))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", fail(CodeDatabase, "open", errors.New("denied")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: open: denied", wrapped.Error())
}
