package ingest

import (
	"context"
	"fmt"
	"sort"
)

// PageScanner is the part of a document the page selector reads.
type PageScanner interface {
	PageCount(ctx context.Context) (int, error)
	MarkerPages(ctx context.Context, marker string) ([]int, error)
}

// SelectPages returns, ascending and without duplicates, the pages carrying
// marker. When no page carries it every page is returned.
func SelectPages(ctx context.Context, doc PageScanner, marker string) ([]int, error) {
	n, err := doc.PageCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	hits, err := doc.MarkerPages(ctx, marker)
	if err != nil {
		return nil, fmt.Errorf("marker scan: %w", err)
	}

	seen := make(map[int]bool, len(hits))
	pages := make([]int, 0, len(hits))
	for _, p := range hits {
		if p < 1 || p > n || seen[p] {
			continue
		}
		seen[p] = true
		pages = append(pages, p)
	}
	if len(pages) == 0 {
		pages = make([]int, n)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}
	sort.Ints(pages)
	return pages, nil
}
