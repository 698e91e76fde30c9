package export

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	"github.com/kailas-cloud/stockmarks/internal/domain/bookmark"
	"github.com/kailas-cloud/stockmarks/internal/domain/grouping"
)

// Render merges completed analyses into one bookmark document.
// A SKU classified by several analyses takes the path from the oldest one.
func Render(analyses []domanalysis.Analysis, opts ...bookmark.Option) (string, error) {
	items, err := Merge(analyses)
	if err != nil {
		return "", err
	}

	root, err := grouping.Build(items)
	if err != nil {
		return "", fmt.Errorf("build bookmark tree: %w", err)
	}

	doc, err := bookmark.Serialize(root, opts...)
	if err != nil {
		return "", fmt.Errorf("serialize bookmarks: %w", err)
	}
	return doc, nil
}

// Merge flattens completed analyses into grouping input ordered by SKU.
func Merge(analyses []domanalysis.Analysis) ([]grouping.Item, error) {
	completed := make([]domanalysis.Analysis, 0, len(analyses))
	for _, a := range analyses {
		if a.Status() == domanalysis.StatusComplete {
			completed = append(completed, a)
		}
	}
	if len(completed) == 0 {
		return nil, fmt.Errorf("no completed analyses: %w", domain.ErrNothingToExport)
	}

	// newest first so older analyses overwrite
	slices.SortStableFunc(completed, func(a, b domanalysis.Analysis) int {
		return cmp.Compare(b.CreatedAt(), a.CreatedAt())
	})

	paths := make(map[string]grouping.Path)
	for _, a := range completed {
		for _, as := range a.Assignments() {
			paths[as.SKU] = as.Path
		}
	}

	skus := make([]string, 0, len(paths))
	for sku := range paths {
		skus = append(skus, sku)
	}
	slices.SortFunc(skus, compareSKU)

	items := make([]grouping.Item, len(skus))
	for i, sku := range skus {
		items[i] = grouping.Item{SKU: sku, Path: paths[sku]}
	}
	return items, nil
}

// compareSKU orders numeric SKUs by value, then everything else lexically.
func compareSKU(a, b string) int {
	na, nb := isDigits(a), isDigits(b)
	switch {
	case na && nb:
		a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if c := cmp.Compare(len(a), len(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case na:
		return -1
	case nb:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
