package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/medibox/internal/store"
)

// AssertionContext provides tree access for state assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, describe(event))
		}
	}
	return buf.String()
}

func describe(e TraceEvent) string {
	switch e.Type {
	case EventStep:
		return fmt.Sprintf("step %d: %s %s", e.Step, e.Op, e.Path)
	case EventChange:
		return fmt.Sprintf("change seq=%d %s", e.Seq, e.Path)
	case EventNotification:
		if e.Code != "" {
			return fmt.Sprintf("notify %s %s -> %s failed: %s", e.Action, e.Via, e.Target, e.Code)
		}
		return fmt.Sprintf("notify %s %s -> %s", e.Action, e.Via, e.Target)
	case EventHandlerError:
		return fmt.Sprintf("handler %s at %s: %s", e.Route, e.Path, e.Error)
	default:
		return e.Type
	}
}

// assertExists checks that a value is stored at the path.
func assertExists(actx *AssertionContext, a Assertion) error {
	v, err := actx.Store.Get(actx.Ctx, a.Path)
	if err != nil {
		return fmt.Errorf("exists %s: %w", a.Path, err)
	}
	if v == nil {
		return &AssertionError{
			Type:     AssertExists,
			Expected: fmt.Sprintf("a value at %s", a.Path),
			Actual:   "nothing stored",
		}
	}
	return nil
}

// assertAbsent checks that nothing is stored at the path.
func assertAbsent(actx *AssertionContext, a Assertion) error {
	v, err := actx.Store.Get(actx.Ctx, a.Path)
	if err != nil {
		return fmt.Errorf("absent %s: %w", a.Path, err)
	}
	if v != nil {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("nothing at %s", a.Path),
			Actual:   fmt.Sprintf("found %s", formatValue(v)),
		}
	}
	return nil
}

// assertEquals compares the stored value with the expected one after both
// are normalized, so YAML integers match stored floats.
func assertEquals(actx *AssertionContext, a Assertion) error {
	want, err := store.Normalize(a.Value)
	if err != nil {
		return fmt.Errorf("equals %s: %w", a.Path, err)
	}
	got, err := actx.Store.Get(actx.Ctx, a.Path)
	if err != nil {
		return fmt.Errorf("equals %s: %w", a.Path, err)
	}
	if !store.Equal(want, got) {
		return &AssertionError{
			Type:     AssertEquals,
			Expected: fmt.Sprintf("%s = %s", a.Path, formatValue(want)),
			Actual:   formatValue(got),
		}
	}
	return nil
}

// assertTokenAbsent checks that no registration token of the recipient at
// the path equals the target, in any of the stored token shapes.
func assertTokenAbsent(actx *AssertionContext, a Assertion) error {
	tokenPath := strings.TrimSuffix(a.Path, "/") + "/registrationToken"
	v, err := actx.Store.Get(actx.Ctx, tokenPath)
	if err != nil {
		return fmt.Errorf("token_absent %s: %w", a.Path, err)
	}
	if hasToken(v, a.Target) {
		return &AssertionError{
			Type:     AssertTokenAbsent,
			Expected: fmt.Sprintf("no token %s under %s", a.Target, tokenPath),
			Actual:   fmt.Sprintf("found %s", formatValue(v)),
		}
	}
	return nil
}

func hasToken(v any, token string) bool {
	switch val := v.(type) {
	case string:
		return val == token
	case map[string]any:
		for k, entry := range val {
			if entry == token || (k == token && entry == true) {
				return true
			}
		}
	}
	return false
}

// assertNotificationCount counts successful deliveries of the action.
func assertNotificationCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, e := range trace {
		if e.Type != EventNotification || e.Code != "" || e.Action != a.Action {
			continue
		}
		if a.Target != "" && e.Target != a.Target {
			continue
		}
		count++
	}
	if count != a.Count {
		expected := fmt.Sprintf("%d deliveries of %s", a.Count, a.Action)
		if a.Target != "" {
			expected += " to " + a.Target
		}
		return &AssertionError{
			Type:     AssertNotificationCount,
			Expected: expected,
			Actual:   fmt.Sprintf("%d deliveries", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertNotificationOrder checks that the first successful delivery of each
// action happens in the listed order. Intervening deliveries are allowed.
func assertNotificationOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, e := range trace {
		if e.Type != EventNotification || e.Code != "" {
			continue
		}
		if _, seen := positions[e.Action]; !seen {
			positions[e.Action] = i + 1 // 1-indexed for readability
		}
	}

	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertNotificationOrder,
				Expected: fmt.Sprintf("all actions delivered: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertNotificationOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertWriteCount counts change log entries at the path, or all entries
// when the path is empty. Seed writes are not counted.
func assertWriteCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, e := range trace {
		if e.Type == EventChange && (a.Path == "" || e.Path == a.Path) {
			count++
		}
	}
	if count != a.Count {
		where := "anywhere"
		if a.Path != "" {
			where = "at " + a.Path
		}
		return &AssertionError{
			Type:     AssertWriteCount,
			Expected: fmt.Sprintf("%d writes %s", a.Count, where),
			Actual:   fmt.Sprintf("%d writes", count),
			Trace:    trace,
		}
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "nothing"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides tree access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertExists, AssertAbsent, AssertEquals, AssertTokenAbsent:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires tree access", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertExists:
				err = assertExists(actx, assertion)
			case AssertAbsent:
				err = assertAbsent(actx, assertion)
			case AssertTokenAbsent:
				err = assertTokenAbsent(actx, assertion)
			default:
				err = assertEquals(actx, assertion)
			}
		case AssertNotificationCount:
			err = assertNotificationCount(result.Trace, assertion)
		case AssertNotificationOrder:
			err = assertNotificationOrder(result.Trace, assertion)
		case AssertWriteCount:
			err = assertWriteCount(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
