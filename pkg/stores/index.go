package stores

import (
	"context"

	"github.com/openfroyo/archetype/pkg/engine"
)

// SourceIndex names the catalog source backed by the crawled index.
const SourceIndex = "index"

// IndexSource exposes the crawled index as a catalog source.
type IndexSource struct {
	store *SQLiteStore
}

// CatalogSource returns the index as an engine.CatalogSource.
func (s *SQLiteStore) CatalogSource() *IndexSource {
	return &IndexSource{store: s}
}

var _ engine.CatalogSource = (*IndexSource)(nil)

// Name implements engine.CatalogSource.
func (i *IndexSource) Name() string {
	return SourceIndex
}

// Entries implements engine.CatalogSource.
func (i *IndexSource) Entries(ctx context.Context) ([]engine.CatalogEntry, error) {
	indexed, err := i.store.ListCatalogEntries(ctx, "")
	if err != nil {
		return nil, err
	}
	entries := make([]engine.CatalogEntry, len(indexed))
	for n, e := range indexed {
		entries[n] = e.CatalogEntry
	}
	return entries, nil
}
