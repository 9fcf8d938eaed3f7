// Package enrich copies pharmacy catalog data onto medicine entries.
//
// When a user writes a medicine entry naming a medicineName and a drugstore,
// the matching record in that pharmacy's catalog is looked up once and its
// descriptive fields, plus the pharmacy's detail record, are merged onto the
// entry in a single write. Later catalog edits do not propagate.
package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/medibox/internal/model"
	"github.com/roach88/medibox/internal/router"
	"github.com/roach88/medibox/internal/store"
)

// Tree is the store access the enricher needs.
type Tree interface {
	Get(ctx context.Context, path string) (any, error)
	Query(ctx context.Context, base, field string, value any) ([]store.Child, error)
	Merge(ctx context.Context, path string, fields map[string]any) (bool, error)
}

// Outcome describes what an enrichment attempt did.
type Outcome int

const (
	// Skipped: the entry was deleted or lacks a name or drugstore.
	Skipped Outcome = iota
	// NoMatch: the drugstore's catalog has no record with that name.
	NoMatch
	// Gone: the entry was deleted before the merge.
	Gone
	// Enriched: the fields were merged onto the entry.
	Enriched
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case NoMatch:
		return "no_match"
	case Gone:
		return "gone"
	case Enriched:
		return "enriched"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Enricher fills medicine entries from pharmacy catalogs.
type Enricher struct {
	tree Tree
}

// New creates an Enricher.
func New(tree Tree) *Enricher {
	return &Enricher{tree: tree}
}

// Handle enriches the entry described by ev.
func (e *Enricher) Handle(ctx context.Context, ev router.Event) error {
	outcome, err := e.Enrich(ctx, ev.Path, ev.After)
	if err != nil {
		return err
	}
	slog.Debug("enrichment finished", "event_id", ev.ID, "path", ev.Path, "outcome", outcome.String())
	return nil
}

// Enrich merges catalog data onto the entry stored at path, whose current
// value is entry. A read failure aborts before anything is written.
func (e *Enricher) Enrich(ctx context.Context, path string, entry any) (Outcome, error) {
	if entry == nil {
		return Skipped, nil
	}
	var me model.MedicineEntry
	if err := model.Decode(entry, &me); err != nil {
		slog.Warn("unreadable medicine entry", "path", path, "error", err)
		return Skipped, nil
	}
	name, drugstore := me.MedicineName.String(), me.Drugstore.String()
	if name == "" || drugstore == "" {
		return Skipped, nil
	}

	if !model.IsKey(drugstore) {
		slog.Warn("drugstore is not a valid key", "path", path, "drugstore", drugstore)
		return Skipped, nil
	}

	matches, err := e.tree.Query(ctx, model.CatalogPath(drugstore), "medicineName", name)
	if err != nil {
		return Skipped, fmt.Errorf("catalog lookup for %q at %s: %w", name, drugstore, err)
	}
	if len(matches) == 0 {
		return NoMatch, nil
	}
	if len(matches) > 1 {
		slog.Warn("duplicate catalog records", "drugstore", drugstore, "medicineName", name, "count", len(matches))
	}
	// Duplicates resolve to the last record in key order.
	record, _ := matches[len(matches)-1].Value.(map[string]any)

	details, err := e.tree.Get(ctx, model.PharmacyDetailsPath(drugstore))
	if err != nil {
		return Skipped, fmt.Errorf("pharmacy details for %s: %w", drugstore, err)
	}

	fields := make(map[string]any, len(model.EnrichmentFields)+1)
	for _, f := range model.EnrichmentFields {
		fields[f] = record[f]
	}
	fields["pharmacyDetails"] = details

	ok, err := e.tree.Merge(ctx, path, fields)
	if err != nil {
		return Skipped, fmt.Errorf("merge enrichment into %s: %w", path, err)
	}
	if !ok {
		return Gone, nil
	}
	return Enriched, nil
}
