package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned for paths or patterns that cannot address a node.
var ErrInvalidPath = errors.New("invalid path")

// forbiddenSegmentChars cannot appear in a path segment.
const forbiddenSegmentChars = ".#$[]"

// SplitPath validates a path and returns its segments.
// Leading and trailing slashes are ignored. The empty path addresses the root
// and yields no segments.
func SplitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	segs := strings.Split(trimmed, "/")
	for _, seg := range segs {
		if err := validateSegment(seg); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPath, path, err)
		}
	}
	return segs, nil
}

// JoinPath joins segments into a path. Empty segments are skipped.
func JoinPath(segs ...string) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

func validateSegment(seg string) error {
	if seg == "" {
		return errors.New("empty segment")
	}
	if strings.ContainsAny(seg, forbiddenSegmentChars) {
		return fmt.Errorf("segment %q contains one of %q", seg, forbiddenSegmentChars)
	}
	return nil
}

// Pattern is a parsed path pattern. Segments of the form "{name}" match any
// single segment and bind it under name.
type Pattern struct {
	raw  string
	segs []patternSeg
}

type patternSeg struct {
	literal  string
	wildcard string // non-empty for {name} segments
}

// ParsePattern parses a pattern such as "User/{name}/registrationToken".
func ParsePattern(pattern string) (Pattern, error) {
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return Pattern{}, fmt.Errorf("%w: empty pattern", ErrInvalidPath)
	}

	seen := make(map[string]bool)
	raw := strings.Split(trimmed, "/")
	segs := make([]patternSeg, 0, len(raw))
	for _, seg := range raw {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := seg[1 : len(seg)-1]
			if name == "" || strings.ContainsAny(name, "{}") {
				return Pattern{}, fmt.Errorf("%w: bad wildcard %q in %q", ErrInvalidPath, seg, pattern)
			}
			if seen[name] {
				return Pattern{}, fmt.Errorf("%w: duplicate wildcard %q in %q", ErrInvalidPath, name, pattern)
			}
			seen[name] = true
			segs = append(segs, patternSeg{wildcard: name})
			continue
		}
		if err := validateSegment(seg); err != nil {
			return Pattern{}, fmt.Errorf("%w %q: %v", ErrInvalidPath, pattern, err)
		}
		segs = append(segs, patternSeg{literal: seg})
	}
	return Pattern{raw: trimmed, segs: segs}, nil
}

// String returns the pattern as written.
func (p Pattern) String() string {
	return p.raw
}

// Len returns the number of segments in the pattern.
func (p Pattern) Len() int {
	return len(p.segs)
}

// Match reports whether path matches the pattern exactly and returns the
// bound wildcard parameters.
func (p Pattern) Match(path string) (map[string]string, bool) {
	segs, err := SplitPath(path)
	if err != nil || len(segs) != len(p.segs) {
		return nil, false
	}
	return p.matchPrefix(segs)
}

// matchPrefix matches the first len(segs) pattern segments against segs.
func (p Pattern) matchPrefix(segs []string) (map[string]string, bool) {
	if len(segs) > len(p.segs) {
		return nil, false
	}
	params := make(map[string]string)
	for i, seg := range segs {
		ps := p.segs[i]
		if ps.wildcard != "" {
			params[ps.wildcard] = seg
			continue
		}
		if ps.literal != seg {
			return nil, false
		}
	}
	return params, true
}
