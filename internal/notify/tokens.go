package notify

import (
	"sort"
	"strings"
)

// tokenRef is a resolved token and the store path it was read from.
type tokenRef struct {
	token string
	path  string
}

// resolveTokens extracts tokens from the value stored at base. Unknown shapes
// and empty strings yield nothing.
func resolveTokens(base string, v any) []tokenRef {
	switch val := v.(type) {
	case string:
		if tok := strings.TrimSpace(val); tok != "" {
			return []tokenRef{{token: tok, path: base}}
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		refs := make([]tokenRef, 0, len(keys))
		for _, k := range keys {
			switch entry := val[k].(type) {
			case string:
				if tok := strings.TrimSpace(entry); tok != "" {
					refs = append(refs, tokenRef{token: tok, path: base + "/" + k})
				}
			case bool:
				if entry {
					refs = append(refs, tokenRef{token: k, path: base + "/" + k})
				}
			}
		}
		return refs
	}
	return nil
}

// dedupe drops repeated tokens, keeping the first reference to each.
func dedupe(refs []tokenRef) []tokenRef {
	seen := make(map[string]bool, len(refs))
	out := refs[:0:0]
	for _, r := range refs {
		if seen[r.token] {
			continue
		}
		seen[r.token] = true
		out = append(out, r)
	}
	return out
}
