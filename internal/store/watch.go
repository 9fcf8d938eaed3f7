package store

import (
	"fmt"
	"sort"
)

// Change describes one effective mutation at a concrete path matching a
// watched pattern.
type Change struct {
	// Seq is the change log sequence number of the write that caused it.
	Seq int64

	// Pattern is the watched pattern that matched.
	Pattern string

	// Path is the concrete path whose value changed.
	Path string

	// Params maps wildcard names in Pattern to the matched segments.
	Params map[string]string

	// Before is the value prior to the write, nil if it did not exist.
	Before any

	// After is the value after the write, nil if it was deleted.
	After any
}

// Created reports whether the change brought the value into existence.
func (c Change) Created() bool {
	return c.Before == nil && c.After != nil
}

// Deleted reports whether the change removed the value.
func (c Change) Deleted() bool {
	return c.Before != nil && c.After == nil
}

// ChangeFunc receives changes for a watched pattern. It is called
// synchronously after commit while the store's write lock is held, so it must
// not block and must not write to the store.
type ChangeFunc func(Change)

type watcher struct {
	pattern Pattern
	fn      ChangeFunc
}

// OnChange registers fn for every change at a path matching pattern.
// The returned cancel function unregisters it and is safe to call twice.
func (s *Store) OnChange(pattern string, fn ChangeFunc) (cancel func(), err error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("on change %q: nil callback", pattern)
	}

	s.watchMu.Lock()
	id := s.nextWatchID
	s.nextWatchID++
	s.watchers[id] = &watcher{pattern: p, fn: fn}
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}, nil
}

// snapshotWatchers returns the current watchers in registration order.
func (s *Store) snapshotWatchers() []*watcher {
	s.watchMu.RLock()
	defer s.watchMu.RUnlock()

	ids := make([]int, 0, len(s.watchers))
	for id := range s.watchers {
		ids = append(ids, id)
	}
	// Registration order keeps delivery deterministic.
	sort.Ints(ids)
	out := make([]*watcher, len(ids))
	for i, id := range ids {
		out[i] = s.watchers[id]
	}
	return out
}

// delivery pairs a change with the watcher that should receive it.
type delivery struct {
	w      *watcher
	change Change
}

// descendantChanges expands the part of w's pattern below the written path.
// segs is the written path, already known to match the pattern's prefix.
func descendantChanges(w *watcher, segs []string, params map[string]string, before, after any) []delivery {
	var out []delivery
	var walk func(depth int, path []string, params map[string]string, b, a any)
	walk = func(depth int, path []string, params map[string]string, b, a any) {
		if b == nil && a == nil {
			return
		}
		if depth == w.pattern.Len() {
			if Equal(b, a) {
				return
			}
			out = append(out, delivery{w: w, change: Change{
				Pattern: w.pattern.String(),
				Path:    JoinPath(path...),
				Params:  params,
				Before:  b,
				After:   a,
			}})
			return
		}

		ps := w.pattern.segs[depth]
		if ps.wildcard == "" {
			walk(depth+1, appendSeg(path, ps.literal), params,
				childAt(b, []string{ps.literal}), childAt(a, []string{ps.literal}))
			return
		}

		keys := make(map[string]any)
		if m, ok := b.(map[string]any); ok {
			for k := range m {
				keys[k] = true
			}
		}
		if m, ok := a.(map[string]any); ok {
			for k := range m {
				keys[k] = true
			}
		}
		for _, k := range sortedKeys(keys) {
			bound := make(map[string]string, len(params)+1)
			for pk, pv := range params {
				bound[pk] = pv
			}
			bound[ps.wildcard] = k
			walk(depth+1, appendSeg(path, k), bound,
				childAt(b, []string{k}), childAt(a, []string{k}))
		}
	}
	walk(len(segs), segs, params, before, after)
	return out
}

func appendSeg(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}
