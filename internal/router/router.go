package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/medibox/internal/store"
)

// Watcher is the store primitive the router subscribes through.
type Watcher interface {
	OnChange(pattern string, fn store.ChangeFunc) (cancel func(), err error)
}

// Event is a change delivered to a handler.
type Event struct {
	// ID correlates log lines for one delivery.
	ID string

	store.Change
}

// Handler reacts to a change at a watched path.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Option configures a Router.
type Option func(*Router)

// WithEventIDs overrides the event ID generator (default UUIDv7Generator).
func WithEventIDs(gen EventIDGenerator) Option {
	return func(r *Router) {
		r.ids = gen
	}
}

// WithHandlerTimeout bounds every handler invocation. Zero disables it.
func WithHandlerTimeout(d time.Duration) Option {
	return func(r *Router) {
		r.timeout = d
	}
}

// WithErrorHook registers fn to observe failed handler invocations after
// they are logged.
func WithErrorHook(fn func(*HandlerError)) Option {
	return func(r *Router) {
		r.onError = fn
	}
}

// Router dispatches store changes to handlers, one goroutine per route.
//
// Thread-safety model:
//   - Handle(): before Run only
//   - Run(): called once, from one goroutine
//   - WaitIdle(), Stop(): safe from any goroutine
type Router struct {
	watcher Watcher
	ids     EventIDGenerator
	timeout time.Duration
	onError func(*HandlerError)

	mu      sync.Mutex
	routes  []*route
	running bool
	stop    context.CancelFunc

	// pending counts changes enqueued but not yet fully handled. A handler's
	// own writes are enqueued before its delivery is counted down, so zero
	// means no work is outstanding.
	pending atomic.Int64
}

type route struct {
	name    string
	pattern store.Pattern
	handler Handler
	queue   *changeQueue
}

// New creates a Router reading changes from w.
func New(w Watcher, opts ...Option) *Router {
	r := &Router{
		watcher: w,
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers h for changes at paths matching pattern. The name labels
// the route in logs.
func (r *Router) Handle(name, pattern string, h Handler) error {
	p, err := store.ParsePattern(pattern)
	if err != nil {
		return fmt.Errorf("route %s: %w", name, err)
	}
	if h == nil {
		return fmt.Errorf("route %s: nil handler", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrRunning
	}
	r.routes = append(r.routes, &route{
		name:    name,
		pattern: p,
		handler: h,
		queue:   newChangeQueue(),
	})
	return nil
}

// HandleFunc registers a function as a handler.
func (r *Router) HandleFunc(name, pattern string, fn func(ctx context.Context, ev Event) error) error {
	return r.Handle(name, pattern, HandlerFunc(fn))
}

// Routes returns the registered route names in registration order.
func (r *Router) Routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.routes))
	for i, rt := range r.routes {
		names[i] = rt.name
	}
	return names
}

// Start subscribes all routes and launches their loops. It returns once the
// subscriptions are in place, so writes made after Start are observed. The
// returned channel yields Run's result.
func (r *Router) Start(ctx context.Context) (<-chan error, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrRunning
	}
	r.running = true
	ctx, cancel := context.WithCancel(ctx)
	r.stop = cancel
	routes := append([]*route(nil), r.routes...)
	r.mu.Unlock()

	cancels := make([]func(), 0, len(routes))
	for _, rt := range routes {
		rt := rt
		unsubscribe, err := r.watcher.OnChange(rt.pattern.String(), func(c store.Change) {
			r.pending.Add(1)
			if !rt.queue.Enqueue(c) {
				r.pending.Add(-1)
			}
		})
		if err != nil {
			for _, c := range cancels {
				c()
			}
			cancel()
			return nil, fmt.Errorf("subscribe route %s: %w", rt.name, err)
		}
		cancels = append(cancels, unsubscribe)
	}

	slog.Info("router starting", "routes", len(routes))

	var wg sync.WaitGroup
	wg.Add(len(routes))
	for _, rt := range routes {
		go func(rt *route) {
			defer wg.Done()
			r.loop(ctx, rt)
		}(rt)
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		for _, c := range cancels {
			c()
		}
		for _, rt := range routes {
			rt.queue.Close()
		}
		wg.Wait()
		for _, rt := range routes {
			if n := rt.queue.Drain(); n > 0 {
				r.pending.Add(int64(-n))
				slog.Warn("dropping undelivered changes", "route", rt.name, "count", n)
			}
		}
		slog.Info("router stopped")
		done <- ctx.Err()
	}()
	return done, nil
}

// Run starts the router and blocks until ctx is cancelled or Stop is called.
func (r *Router) Run(ctx context.Context) error {
	done, err := r.Start(ctx)
	if err != nil {
		return err
	}
	return <-done
}

// Stop shuts the router down. Run returns once in-flight handlers finish.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		r.stop()
	}
}

// WaitIdle blocks until every delivered change, including the changes its
// handler caused, has been handled, or ctx is done.
func (r *Router) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		if r.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// loop drains one route's queue until ctx is cancelled.
func (r *Router) loop(ctx context.Context, rt *route) {
	for {
		if ctx.Err() != nil {
			return
		}
		c, ok := rt.queue.TryDequeue()
		if ok {
			r.dispatch(ctx, rt, c)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-rt.queue.Wait():
			if rt.queue.Closed() && rt.queue.Len() == 0 {
				return
			}
		}
	}
}

// dispatch runs the route's handler for one change. Failures are logged and
// never retried.
func (r *Router) dispatch(ctx context.Context, rt *route, c store.Change) {
	defer r.pending.Add(-1)

	ev := Event{ID: r.ids.Generate(), Change: c}

	hctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	slog.Debug("dispatching change",
		"route", rt.name,
		"event_id", ev.ID,
		"path", ev.Path,
		"seq", ev.Seq,
	)

	if err := r.invoke(hctx, rt, ev); err != nil {
		herr := &HandlerError{Route: rt.name, EventID: ev.ID, Path: ev.Path, Seq: ev.Seq, Err: err}
		logHandlerError(herr)
		if r.onError != nil {
			r.onError(herr)
		}
	}
}

func (r *Router) invoke(ctx context.Context, rt *route, ev Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	return rt.handler.Handle(ctx, ev)
}

// logHandlerError logs with full event context for manual recovery.
func logHandlerError(e *HandlerError) {
	attrs := []any{
		"error", e.Err,
		"route", e.Route,
		"event_id", e.EventID,
		"path", e.Path,
		"seq", e.Seq,
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		attrs = append(attrs, "timed_out", true)
	}
	slog.Error("handler failed", attrs...)
}
