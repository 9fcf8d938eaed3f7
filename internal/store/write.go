package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// nextFunc computes the new value at a mutation root from its current value.
// Returning ok=false abandons the mutation without writing.
type nextFunc func(before any) (after any, ok bool, err error)

// Set replaces the value at path. A nil value (or one that normalizes to
// nothing, such as an empty object) deletes the node.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	normalized, err := Normalize(value)
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	return s.write(ctx, func(tx *sqlx.Tx, out *[]delivery) error {
		_, err := s.mutate(ctx, tx, path, func(any) (any, bool, error) {
			return normalized, true, nil
		}, out)
		return err
	})
}

// Delete removes the node at path and everything below it.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

// Merge sets each field below an existing node in a single transaction.
// Field keys may be relative paths ("pharmacyDetails/name"); nil values delete.
// Returns false without writing when the node at path does not exist.
func (s *Store) Merge(ctx context.Context, path string, fields map[string]any) (bool, error) {
	type fieldUpdate struct {
		segs  []string
		value any
	}
	updates := make([]fieldUpdate, 0, len(fields))
	for _, key := range sortedKeys(fields) {
		segs, err := SplitPath(key)
		if err != nil {
			return false, fmt.Errorf("merge %q: %w", path, err)
		}
		if len(segs) == 0 {
			return false, fmt.Errorf("merge %q: %w: empty field key", path, ErrInvalidPath)
		}
		v, err := Normalize(fields[key])
		if err != nil {
			return false, fmt.Errorf("merge %q: %w", path, err)
		}
		updates = append(updates, fieldUpdate{segs: segs, value: v})
	}

	var merged bool
	err := s.write(ctx, func(tx *sqlx.Tx, out *[]delivery) error {
		ok, err := s.mutate(ctx, tx, path, func(before any) (any, bool, error) {
			if before == nil {
				return nil, false, nil
			}
			after := before
			for _, u := range updates {
				after = setAt(after, u.segs, u.value)
			}
			return after, true, nil
		}, out)
		merged = ok
		return err
	})
	if err != nil {
		return false, err
	}
	return merged, nil
}

// Move copies the node at from to to and deletes from, in one transaction.
// It returns the moved value, or nil without writing anything when from does
// not exist.
func (s *Store) Move(ctx context.Context, from, to string) (any, error) {
	fromSegs, err := SplitPath(from)
	if err != nil {
		return nil, fmt.Errorf("move: %w", err)
	}
	toSegs, err := SplitPath(to)
	if err != nil {
		return nil, fmt.Errorf("move: %w", err)
	}
	if isPrefix(fromSegs, toSegs) || isPrefix(toSegs, fromSegs) {
		return nil, fmt.Errorf("move %q to %q: %w: overlapping paths", from, to, ErrInvalidPath)
	}

	var moved any
	err = s.write(ctx, func(tx *sqlx.Tx, out *[]delivery) error {
		value, err := readSubtree(ctx, tx, JoinPath(fromSegs...))
		if err != nil {
			return err
		}
		if value == nil {
			return nil
		}
		if _, err := s.mutate(ctx, tx, to, func(any) (any, bool, error) {
			return value, true, nil
		}, out); err != nil {
			return err
		}
		if _, err := s.mutate(ctx, tx, from, func(any) (any, bool, error) {
			return nil, true, nil
		}, out); err != nil {
			return err
		}
		moved = value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// write runs fn in a transaction and, after commit, delivers the changes it
// collected. The write lock is held throughout so deliveries follow commit
// order.
func (s *Store) write(ctx context.Context, fn func(tx *sqlx.Tx, out *[]delivery) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var deliveries []delivery
	if err := fn(tx, &deliveries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for _, d := range deliveries {
		d.w.fn(d.change)
	}
	return nil
}

// mutate replaces the value at path with next(before) inside tx, appends the
// change log entry and collects watcher deliveries into out.
func (s *Store) mutate(ctx context.Context, tx *sqlx.Tx, path string, next nextFunc, out *[]delivery) (bool, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return false, err
	}
	path = JoinPath(segs...)

	before, err := readSubtree(ctx, tx, path)
	if err != nil {
		return false, err
	}
	after, ok, err := next(before)
	if err != nil || !ok {
		return false, err
	}
	if Equal(before, after) {
		return true, nil
	}

	watchers := s.snapshotWatchers()

	// Ancestor (and exact) matches need their whole value before and after.
	type ancestor struct {
		w      *watcher
		path   string
		params map[string]string
		before any
	}
	var ancestors []ancestor
	var descendants []delivery
	for _, w := range watchers {
		n := w.pattern.Len()
		if n <= len(segs) {
			params, ok := w.pattern.matchPrefix(segs[:n])
			if !ok {
				continue
			}
			cpath := JoinPath(segs[:n]...)
			cbefore := before
			if n < len(segs) {
				if cbefore, err = readSubtree(ctx, tx, cpath); err != nil {
					return false, err
				}
			}
			ancestors = append(ancestors, ancestor{w: w, path: cpath, params: params, before: cbefore})
			continue
		}
		params, ok := w.pattern.matchPrefix(segs)
		if !ok {
			continue
		}
		descendants = append(descendants, descendantChanges(w, segs, params, before, after)...)
	}

	if err := replaceSubtree(ctx, tx, segs, after); err != nil {
		return false, err
	}

	seq := s.clock.Next()
	if err := appendChange(ctx, tx, seq, path, before, after); err != nil {
		return false, err
	}

	for _, a := range ancestors {
		cafter := after
		if a.path != path {
			if cafter, err = readSubtree(ctx, tx, a.path); err != nil {
				return false, err
			}
		}
		if Equal(a.before, cafter) {
			continue
		}
		*out = append(*out, delivery{w: a.w, change: Change{
			Seq:     seq,
			Pattern: a.w.pattern.String(),
			Path:    a.path,
			Params:  a.params,
			Before:  a.before,
			After:   cafter,
		}})
	}
	for _, d := range descendants {
		d.change.Seq = seq
		*out = append(*out, d)
	}
	return true, nil
}

// replaceSubtree deletes the subtree at segs, any scalar stored at one of its
// ancestors, and inserts the leaves of value.
func replaceSubtree(ctx context.Context, tx *sqlx.Tx, segs []string, value any) error {
	path := JoinPath(segs...)
	if err := deleteSubtree(ctx, tx, path); err != nil {
		return err
	}
	for i := 1; i < len(segs); i++ {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE path = ?`, JoinPath(segs[:i]...)); err != nil {
			return fmt.Errorf("delete ancestor leaf: %w", err)
		}
	}

	leaves, err := flatten(path, value)
	if err != nil {
		return err
	}
	for _, l := range leaves {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO nodes (path, value) VALUES (:path, :value)`, l); err != nil {
			return fmt.Errorf("insert leaf %q: %w", l.Path, err)
		}
	}
	return nil
}

func deleteSubtree(ctx context.Context, tx *sqlx.Tx, path string) error {
	var err error
	if path == "" {
		_, err = tx.ExecContext(ctx, `DELETE FROM nodes`)
	} else {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM nodes WHERE path = ? OR (path >= ? AND path < ?)`,
			path, path+"/", path+"0")
	}
	if err != nil {
		return fmt.Errorf("delete subtree %q: %w", path, err)
	}
	return nil
}

func appendChange(ctx context.Context, tx *sqlx.Tx, seq int64, path string, before, after any) error {
	b, err := encodeNullable(before)
	if err != nil {
		return fmt.Errorf("encode before: %w", err)
	}
	a, err := encodeNullable(after)
	if err != nil {
		return fmt.Errorf("encode after: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO changes (seq, path, before, after) VALUES (?, ?, ?, ?)`,
		seq, path, b, a)
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}
	return nil
}

// setAt returns obj with the value at segs replaced by v.
func setAt(obj any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	child := childAt(obj, segs[:1])
	return withChild(obj, segs[0], setAt(child, segs[1:], v))
}

func isPrefix(prefix, segs []string) bool {
	if len(prefix) > len(segs) {
		return false
	}
	return strings.Join(prefix, "/") == strings.Join(segs[:len(prefix)], "/")
}
