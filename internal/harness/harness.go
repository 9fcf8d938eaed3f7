package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/medibox/internal/notify"
	"github.com/roach88/medibox/internal/router"
	"github.com/roach88/medibox/internal/store"
	"github.com/roach88/medibox/internal/testutil"
	"github.com/roach88/medibox/internal/triggers"
)

// IdleTimeout bounds how long the harness waits for handlers after a step.
const IdleTimeout = 5 * time.Second

// Harness is the test execution engine.
// It drives one scenario against a live router with deterministic event IDs.
type Harness struct {
	store     *store.Store
	router    *router.Router
	transport *testutil.RecordingTransport
	logger    *slog.Logger

	mu     sync.Mutex
	failed []*router.HandlerError
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and write the seed
// 2. Register the medibox handlers and start the router
// 3. Execute steps, waiting for the router to go idle after each
// 4. Evaluate assertions against the final tree and the trace
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := seed(ctx, st, scenario.Seed); err != nil {
		return nil, err
	}

	failures := make(map[string]notify.Code, len(scenario.FailTokens))
	for target, code := range scenario.FailTokens {
		failures[target] = notify.Code(code)
	}

	h := &Harness{
		store:     st,
		transport: testutil.NewRecordingTransport(failures),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.router = router.New(st,
		router.WithEventIDs(testutil.NewFixedEventIDGenerator(scenario.EventID)),
		router.WithHandlerTimeout(IdleTimeout),
		router.WithErrorHook(h.recordFailure),
	)
	if err := triggers.Register(h.router, triggers.Deps{Store: st, Transport: h.transport}); err != nil {
		return nil, err
	}

	done, err := h.router.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start router: %w", err)
	}
	defer func() {
		h.router.Stop()
		<-done
	}()

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// seed writes the initial tree in path order before any handler listens.
func seed(ctx context.Context, st *store.Store, values map[string]any) error {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := st.Set(ctx, p, values[p]); err != nil {
			return fmt.Errorf("seed %s: %w", p, err)
		}
	}
	return nil
}

// executeSteps applies each step and records what it caused.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	since := h.store.LastSeq()
	delivered := 0
	failed := 0

	for i, step := range steps {
		result.Trace = append(result.Trace, TraceEvent{
			Type:  EventStep,
			Step:  i,
			Op:    step.Op(),
			Path:  step.Path(),
			After: stepValue(step),
		})

		if err := h.apply(ctx, step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		idleCtx, cancel := context.WithTimeout(ctx, IdleTimeout)
		err := h.router.WaitIdle(idleCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d: handlers did not settle: %w", i, err)
		}

		changes, err := h.store.Changes(ctx, since, 0)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		for _, c := range changes {
			result.Trace = append(result.Trace, TraceEvent{
				Type:   EventChange,
				Step:   i,
				Seq:    c.Seq,
				Path:   c.Path,
				Before: c.Before,
				After:  c.After,
			})
			since = c.Seq
		}

		deliveries := h.transport.Deliveries()
		result.Trace = append(result.Trace, notificationEvents(i, deliveries[delivered:])...)
		delivered = len(deliveries)

		h.mu.Lock()
		herrs := append([]*router.HandlerError(nil), h.failed[failed:]...)
		failed = len(h.failed)
		h.mu.Unlock()
		result.Trace = append(result.Trace, handlerErrorEvents(i, herrs)...)

		h.logger.Info("step completed",
			"step", i,
			"op", step.Op(),
			"path", step.Path(),
			"changes", len(changes),
		)
	}
	return nil
}

func (h *Harness) apply(ctx context.Context, step Step) error {
	switch step.Op() {
	case "set":
		return h.store.Set(ctx, step.Set, step.Value)
	case "merge":
		_, err := h.store.Merge(ctx, step.Merge, step.Fields)
		return err
	case "delete":
		return h.store.Delete(ctx, step.Delete)
	default:
		return fmt.Errorf("no operation")
	}
}

func (h *Harness) recordFailure(e *router.HandlerError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, e)
}

func stepValue(step Step) any {
	switch step.Op() {
	case "set":
		v, err := store.Normalize(step.Value)
		if err != nil {
			return nil
		}
		return v
	case "merge":
		v, err := store.Normalize(step.Fields)
		if err != nil {
			return nil
		}
		return v
	default:
		return nil
	}
}

// notificationEvents converts one step's deliveries, sorted so that the
// order in which concurrent routes reached the transport does not matter.
func notificationEvents(step int, deliveries []testutil.Delivery) []TraceEvent {
	events := make([]TraceEvent, 0, len(deliveries))
	for _, d := range deliveries {
		events = append(events, TraceEvent{
			Type:   EventNotification,
			Step:   step,
			Via:    d.Via,
			Target: d.Target,
			Action: string(d.Message.Action()),
			Code:   string(d.Err),
			Data:   d.Message.Data,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Via != b.Via {
			return a.Via < b.Via
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Action < b.Action
	})
	return events
}

func handlerErrorEvents(step int, errs []*router.HandlerError) []TraceEvent {
	events := make([]TraceEvent, 0, len(errs))
	for _, e := range errs {
		events = append(events, TraceEvent{
			Type:  EventHandlerError,
			Step:  step,
			Route: e.Route,
			Path:  e.Path,
			Error: e.Err.Error(),
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Route != events[j].Route {
			return events[i].Route < events[j].Route
		}
		return events[i].Path < events[j].Path
	})
	return events
}
