// Package catalog serves pharmacy catalog searches and the tree REST API
// over HTTP.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/medibox/internal/model"
	"github.com/roach88/medibox/internal/store"
)

// Reader is the read access a search needs.
type Reader interface {
	Children(ctx context.Context, path string) ([]store.Child, error)
}

// Match is a catalog record annotated with where it came from.
type Match map[string]any

// Search scans every pharmacy's catalog for records named name. Names match
// after Unicode normalization and case folding, so "panadol" finds
// "Panadol". Results are ordered by pharmacy, then record key.
func Search(ctx context.Context, tree Reader, name string) ([]Match, error) {
	want := foldName(name)
	matches := make([]Match, 0)
	if want == "" {
		return matches, nil
	}

	pharmacies, err := tree.Children(ctx, model.PharmacyRoot)
	if err != nil {
		return nil, fmt.Errorf("list pharmacies: %w", err)
	}
	for _, p := range pharmacies {
		node, ok := p.Value.(map[string]any)
		if !ok {
			continue
		}
		records, ok := node["Pharmacy-Medicine-Details"].(map[string]any)
		if !ok {
			continue
		}
		details := node["Pharmacy-Details"]

		for _, key := range sortedKeys(records) {
			record, ok := records[key].(map[string]any)
			if !ok {
				continue
			}
			recordName, _ := record["medicineName"].(string)
			if foldName(recordName) != want {
				continue
			}
			m := make(Match, len(record)+2)
			for k, v := range record {
				m[k] = v
			}
			m["drugstore"] = p.Key
			if details != nil {
				m["pharmacyDetails"] = details
			}
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// foldName canonicalizes a medicine name for comparison. Casers hold state,
// so each call gets its own.
func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
