package harness

// Trace event types.
const (
	EventStep         = "step"
	EventChange       = "change"
	EventNotification = "notification"
	EventHandlerError = "handler_error"
)

// TraceEvent is one entry in a scenario trace. Which fields are set depends
// on Type.
type TraceEvent struct {
	Type string `json:"type"`

	// Step is the zero-based index of the step that caused the event.
	Step int `json:"step"`

	// Op is the client operation (step events).
	Op string `json:"op,omitempty"`

	// Seq is the change log sequence number (change events).
	Seq int64 `json:"seq,omitempty"`

	// Path is the written path (step, change and handler_error events).
	Path string `json:"path,omitempty"`

	// Before and After are the values around a change.
	Before any `json:"before,omitempty"`
	After  any `json:"after,omitempty"`

	// Via, Target and Action describe a delivery (notification events).
	Via    string `json:"via,omitempty"`
	Target string `json:"target,omitempty"`
	Action string `json:"action,omitempty"`

	// Code is the transport error code of a failed delivery.
	Code string `json:"code,omitempty"`

	// Data is the delivered message payload.
	Data map[string]string `json:"data,omitempty"`

	// Route and Error describe a failed handler invocation.
	Route string `json:"route,omitempty"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion held.
	Pass bool `json:"pass"`

	// Trace lists steps and their effects in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the trace events of the given type, in order.
func (r *Result) Events(typ string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
