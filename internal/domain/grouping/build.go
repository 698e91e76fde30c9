package grouping

import (
	"strconv"

	"github.com/kailas-cloud/stockmarks/internal/domain"
)

// Path is an ordered list of attribute values, most general first.
type Path []string

// Item pairs an identifier with its attribute path.
type Item struct {
	SKU  string
	Path Path
}

// Validate rejects empty paths and empty segments.
func (p Path) Validate(sku string) error {
	if len(p) == 0 {
		return &domain.InvalidPathError{SKU: sku, Path: p, Reason: "path is empty"}
	}
	for i, seg := range p {
		if seg == "" {
			return &domain.InvalidPathError{SKU: sku, Path: p, Reason: segmentReason(i)}
		}
	}
	return nil
}

func segmentReason(i int) string {
	return "segment " + strconv.Itoa(i) + " is empty"
}

// Build folds items, in input order, into a tree rooted at a branch. Each path
// segment but the last becomes a branch; the last segment names a leaf the
// identifier is appended to. A segment resolving to a leaf where a branch is
// needed (or the reverse) fails with *domain.StructuralConflictError.
func Build(items []Item) (*Node, error) {
	root := NewBranch()
	for _, it := range items {
		if err := insert(root, it); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func insert(root *Node, it Item) error {
	if err := it.Path.Validate(it.SKU); err != nil {
		return err
	}

	level := root
	last := len(it.Path) - 1
	for i, seg := range it.Path {
		existing, ok := level.children[seg]
		if !ok {
			if i == last {
				_ = level.Put(seg, NewLeaf(it.SKU))
				return nil
			}
			next := NewBranch()
			_ = level.Put(seg, next)
			level = next
			continue
		}

		wantLeaf := i == last
		if existing.IsLeaf() != wantLeaf {
			return &domain.StructuralConflictError{
				SKU:       it.SKU,
				Path:      append([]string(nil), it.Path...),
				Segment:   i,
				WantLeaf:  wantLeaf,
				FoundLeaf: existing.IsLeaf(),
			}
		}
		if wantLeaf {
			existing.appendSKU(it.SKU)
			return nil
		}
		level = existing
	}
	return nil
}
