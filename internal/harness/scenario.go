package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/medibox/internal/notify"
	"github.com/roach88/medibox/internal/store"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// EventID is an optional fixed event ID for deterministic logs.
	EventID string `yaml:"event_id,omitempty"`

	// Seed maps paths to values written before handlers start. Seed writes
	// trigger nothing.
	Seed map[string]any `yaml:"seed,omitempty"`

	// FailTokens maps device tokens or topics to the error code the
	// transport returns for them.
	FailTokens map[string]string `yaml:"fail_tokens,omitempty"`

	// Steps are client writes performed in order with handlers running.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final tree and the deliveries.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one client write. Exactly one of Set, Merge and Delete is set.
type Step struct {
	Set    string         `yaml:"set,omitempty"`
	Merge  string         `yaml:"merge,omitempty"`
	Delete string         `yaml:"delete,omitempty"`
	Value  any            `yaml:"value,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Op names the step's operation.
func (s Step) Op() string {
	switch {
	case s.Set != "":
		return "set"
	case s.Merge != "":
		return "merge"
	case s.Delete != "":
		return "delete"
	default:
		return ""
	}
}

// Path is the path the step writes.
func (s Step) Path() string {
	return s.Set + s.Merge + s.Delete
}

// Assertion validates final state or deliveries.
type Assertion struct {
	// Type specifies the assertion type, one of the Assert* constants.
	Type string `yaml:"type"`

	// Path is the tree path (exists, absent, equals, write_count) or the
	// recipient node such as User/alice (token_absent).
	Path string `yaml:"path,omitempty"`

	// Value is the expected value (equals).
	Value any `yaml:"value,omitempty"`

	// Action is the notification action (notification_count).
	Action string `yaml:"action,omitempty"`

	// Target restricts notification_count to one token or topic, or names
	// the token that must be gone (token_absent).
	Target string `yaml:"target,omitempty"`

	// Count is the expected number (notification_count, write_count).
	Count int `yaml:"count"`

	// Actions is the expected action order (notification_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertExists            = "exists"
	AssertAbsent            = "absent"
	AssertEquals            = "equals"
	AssertNotificationCount = "notification_count"
	AssertNotificationOrder = "notification_order"
	AssertWriteCount        = "write_count"
	AssertTokenAbsent       = "token_absent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir whose base name
// (without extension) matches the glob filter, sorted by path. An empty
// filter matches everything. The golden directory is skipped.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for path := range s.Seed {
		if _, err := store.SplitPath(path); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	for target, code := range s.FailTokens {
		if !knownCode(notify.Code(code)) {
			return fmt.Errorf("fail_tokens[%s]: unknown error code %q", target, code)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	set := 0
	for _, p := range []string{s.Set, s.Merge, s.Delete} {
		if p != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of set, merge or delete is required", index)
	}
	if _, err := store.SplitPath(s.Path()); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	switch s.Op() {
	case "set":
		if s.Fields != nil {
			return fmt.Errorf("steps[%d]: set takes value, not fields", index)
		}
	case "merge":
		if len(s.Fields) == 0 {
			return fmt.Errorf("steps[%d]: merge requires fields", index)
		}
		if s.Value != nil {
			return fmt.Errorf("steps[%d]: merge takes fields, not value", index)
		}
	case "delete":
		if s.Value != nil || s.Fields != nil {
			return fmt.Errorf("steps[%d]: delete takes no value", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertExists, AssertAbsent, AssertEquals:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
		if a.Type == AssertEquals && a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for equals (use absent for missing nodes)", index)
		}
	case AssertNotificationCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for notification_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertNotificationOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for notification_order", index)
		}
	case AssertTokenAbsent:
		if a.Path == "" || a.Target == "" {
			return fmt.Errorf("assertions[%d]: path and target are required for token_absent", index)
		}
	case AssertWriteCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func knownCode(c notify.Code) bool {
	switch c {
	case notify.CodeInvalidToken, notify.CodeNotRegistered, notify.CodeRateLimited,
		notify.CodeUnavailable, notify.CodeUnknown:
		return true
	default:
		return false
	}
}
