package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden trace snapshots live, relative to the test.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	EventID      string       `json:"event_id,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// Marshal renders the snapshot as indented JSON. Map keys are sorted by
// encoding/json, so equal traces give identical bytes.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		EventID:      scenario.EventID,
		Trace:        result.Trace,
	}
	if err := assertSnapshot(t, GoldenDir, scenario.Name, &snapshot); err != nil {
		return nil, err
	}
	return result, nil
}

func assertSnapshot(t *testing.T, dir, name string, s *TraceSnapshot) error {
	t.Helper()

	data, err := s.Marshal()
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
