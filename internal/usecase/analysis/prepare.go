package analysis

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
	"github.com/kailas-cloud/stockmarks/internal/domain/grouping"
)

// prepareProducts sorts hits by title and collapses duplicate SKUs.
// A repeated SKU keeps its first position and takes the last title seen.
// Hits without a SKU cannot be linked and are dropped.
func prepareProducts(hits []catalog.Hit, tag language.Tag) []catalog.Hit {
	sorted := slices.Clone(hits)
	c := collate.New(tag)
	slices.SortStableFunc(sorted, func(a, b catalog.Hit) int {
		return c.CompareString(a.Title, b.Title)
	})

	pos := make(map[string]int, len(sorted))
	out := make([]catalog.Hit, 0, len(sorted))
	for _, h := range sorted {
		if h.SKU == "" {
			continue
		}
		if i, ok := pos[h.SKU]; ok {
			out[i].Title = h.Title
			continue
		}
		pos[h.SKU] = len(out)
		out = append(out, h)
	}
	return out
}

// filterAssignments keeps assignments for known, non-excluded SKUs.
// A SKU repeated by the oracle keeps its first position and its last path.
func filterAssignments(cls domanalysis.Classification, products []catalog.Hit) []domanalysis.Assignment {
	known := make(map[string]struct{}, len(products))
	for _, p := range products {
		known[p.SKU] = struct{}{}
	}
	excluded := make(map[string]struct{}, len(cls.Excluded))
	for _, sku := range cls.Excluded {
		excluded[sku] = struct{}{}
	}

	pos := make(map[string]int, len(cls.Assignments))
	out := make([]domanalysis.Assignment, 0, len(cls.Assignments))
	for _, as := range cls.Assignments {
		if _, ok := known[as.SKU]; !ok {
			continue
		}
		if _, ok := excluded[as.SKU]; ok {
			continue
		}
		if i, ok := pos[as.SKU]; ok {
			out[i].Path = as.Path
			continue
		}
		pos[as.SKU] = len(out)
		out = append(out, domanalysis.Assignment{SKU: as.SKU, Path: slices.Clone(as.Path)})
	}
	return out
}

// validateAssignments checks that the assignments form a consistent tree.
func validateAssignments(assignments []domanalysis.Assignment) error {
	items := make([]grouping.Item, len(assignments))
	for i, as := range assignments {
		items[i] = grouping.Item{SKU: as.SKU, Path: as.Path}
	}
	_, err := grouping.Build(items)
	return err //nolint:wrapcheck // domain errors pass through
}
