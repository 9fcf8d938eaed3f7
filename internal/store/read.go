package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Child is one direct child of a node.
type Child struct {
	Key   string
	Value any
}

// LogEntry is one row of the change log.
type LogEntry struct {
	Seq    int64  `json:"seq"`
	Path   string `json:"path"`
	Before any    `json:"before,omitempty"`
	After  any    `json:"after,omitempty"`
}

// Get returns the value at path, or nil if nothing is stored there.
func (s *Store) Get(ctx context.Context, path string) (any, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	return readSubtree(ctx, s.db, JoinPath(segs...))
}

// Exists reports whether a value is stored at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	v, err := s.Get(ctx, path)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Children returns the direct children of the node at path ordered by key.
// A scalar or missing node has no children.
func (s *Store) Children(ctx context.Context, path string) ([]Child, error) {
	v, err := s.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return []Child{}, nil
	}
	children := make([]Child, 0, len(m))
	for _, k := range sortedKeys(m) {
		children = append(children, Child{Key: k, Value: m[k]})
	}
	return children, nil
}

// Query returns the children of base whose field equals value, ordered by
// key. Values are compared after normalization, so 3 and 3.0 are equal.
func (s *Store) Query(ctx context.Context, base, field string, value any) ([]Child, error) {
	fieldSegs, err := SplitPath(field)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", base, err)
	}
	want, err := Normalize(value)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", base, err)
	}

	children, err := s.Children(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", base, err)
	}
	matches := make([]Child, 0)
	for _, c := range children {
		if Equal(childAt(c.Value, fieldSegs), want) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

// Changes returns up to limit change log entries with seq > since, in seq
// order. A limit <= 0 returns everything.
func (s *Store) Changes(ctx context.Context, since int64, limit int) ([]LogEntry, error) {
	type row struct {
		Seq    int64   `db:"seq"`
		Path   string  `db:"path"`
		Before *string `db:"before"`
		After  *string `db:"after"`
	}
	query := `SELECT seq, path, before, after FROM changes WHERE seq > ? ORDER BY seq ASC`
	args := []any{since}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}

	entries := make([]LogEntry, 0, len(rows))
	for _, r := range rows {
		before, err := decodeNullable(r.Before)
		if err != nil {
			return nil, fmt.Errorf("decode change %d: %w", r.Seq, err)
		}
		after, err := decodeNullable(r.After)
		if err != nil {
			return nil, fmt.Errorf("decode change %d: %w", r.Seq, err)
		}
		entries = append(entries, LogEntry{Seq: r.Seq, Path: r.Path, Before: before, After: after})
	}
	return entries, nil
}

// readSubtree assembles the value at path from its leaf rows.
func readSubtree(ctx context.Context, q sqlx.QueryerContext, path string) (any, error) {
	var rows []leaf
	var err error
	if path == "" {
		err = sqlx.SelectContext(ctx, q, &rows, `SELECT path, value FROM nodes ORDER BY path`)
	} else {
		err = sqlx.SelectContext(ctx, q, &rows,
			`SELECT path, value FROM nodes WHERE path = ? OR (path >= ? AND path < ?) ORDER BY path`,
			path, path+"/", path+"0")
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return assemble(path, rows)
}
