package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/medibox/internal/notify"
)

// Delivery is one message handed to a RecordingTransport.
type Delivery struct {
	// Via is "token" for direct and multicast sends, "topic" for broadcasts.
	Via string `json:"via" yaml:"via"`

	// Target is the device token or topic name.
	Target string `json:"target" yaml:"target"`

	// Err is the failure code returned for this target, empty on success.
	Err notify.Code `json:"error,omitempty" yaml:"error,omitempty"`

	Message notify.Message `json:"message" yaml:"message"`
}

// RecordingTransport implements notify.Transport in memory.
//
// Every attempted delivery is recorded, successful or not, in call order.
// Targets listed in the failure map receive the configured error code.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingTransport struct {
	mu         sync.Mutex
	failures   map[string]notify.Code
	deliveries []Delivery
}

var _ notify.Transport = (*RecordingTransport)(nil)

// NewRecordingTransport creates a transport failing each target in failures
// with its code. A nil map fails nothing.
func NewRecordingTransport(failures map[string]notify.Code) *RecordingTransport {
	f := make(map[string]notify.Code, len(failures))
	for k, v := range failures {
		f[k] = v
	}
	return &RecordingTransport{failures: f}
}

func (t *RecordingTransport) Send(ctx context.Context, token string, msg notify.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record("token", token, msg)
}

func (t *RecordingTransport) SendMulticast(ctx context.Context, tokens []string, msg notify.Message) ([]notify.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	results := make([]notify.Result, len(tokens))
	for i, tok := range tokens {
		results[i] = notify.Result{Token: tok, Err: t.record("token", tok, msg)}
	}
	return results, nil
}

func (t *RecordingTransport) SendToTopic(ctx context.Context, topic string, msg notify.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record("topic", topic, msg)
}

// record must be called with t.mu held.
func (t *RecordingTransport) record(via, target string, msg notify.Message) error {
	d := Delivery{Via: via, Target: target, Message: msg}
	var err error
	if code, ok := t.failures[target]; ok {
		d.Err = code
		err = &notify.SendError{Code: code}
	}
	t.deliveries = append(t.deliveries, d)
	return err
}

// Deliveries returns a copy of everything recorded so far.
func (t *RecordingTransport) Deliveries() []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Delivery, len(t.deliveries))
	copy(out, t.deliveries)
	return out
}

// Delivered returns the successful deliveries tagged with action.
func (t *RecordingTransport) Delivered(action notify.Action) []Delivery {
	var out []Delivery
	for _, d := range t.Deliveries() {
		if d.Err == "" && d.Message.Action() == action {
			out = append(out, d)
		}
	}
	return out
}

// Targets returns the distinct targets that were attempted, sorted.
func (t *RecordingTransport) Targets() []string {
	seen := make(map[string]bool)
	for _, d := range t.Deliveries() {
		seen[d.Target] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Reset clears recorded deliveries. Failures are kept.
func (t *RecordingTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deliveries = nil
}
