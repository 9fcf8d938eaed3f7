package testutil

// FixedEventIDGenerator stamps every event with the same ID.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario produces byte-identical logs on every run.
//
// Unlike router.SequenceGenerator which numbers events, this generator
// always returns the same ID. This is useful when the order in which
// concurrent routes draw IDs must not leak into the output.
//
// Thread-safety: FixedEventIDGenerator is stateless and safe for concurrent use.
type FixedEventIDGenerator struct {
	id string
}

// NewFixedEventIDGenerator creates a new fixed event ID generator.
//
// The ID is typically set in the scenario YAML:
//
//	event_id: "test-event-00000000-0000-0000-0000-000000000001"
//
// If id is empty, Generate() returns "test-event-default".
func NewFixedEventIDGenerator(id string) *FixedEventIDGenerator {
	if id == "" {
		id = "test-event-default"
	}
	return &FixedEventIDGenerator{id: id}
}

// Generate returns the fixed event ID.
//
// Implements router.EventIDGenerator interface.
func (g *FixedEventIDGenerator) Generate() string {
	return g.id
}
