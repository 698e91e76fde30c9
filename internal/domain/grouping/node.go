// Package grouping builds the ordered attribute tree that folds product variants
// sharing an attribute-path prefix under common folders.
package grouping

import "fmt"

// Kind tags the variant held by a Node.
type Kind uint8

// Node variants.
const (
	KindBranch Kind = iota + 1
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindBranch:
		return "branch"
	case KindLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is a two-variant tree node. A branch holds children keyed by the next
// attribute value in first-seen order; a leaf holds identifiers in insertion
// order, duplicates included.
type Node struct {
	kind     Kind
	keys     []string
	children map[string]*Node
	skus     []string
}

// NewBranch returns an empty branch.
func NewBranch() *Node {
	return &Node{kind: KindBranch, children: make(map[string]*Node)}
}

// NewLeaf returns a leaf holding skus.
func NewLeaf(skus ...string) *Node {
	return &Node{kind: KindLeaf, skus: append([]string(nil), skus...)}
}

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool { return n.kind == KindLeaf }

// Keys returns the child keys of a branch in first-seen order. Nil for leaves.
func (n *Node) Keys() []string {
	if n.kind != KindBranch {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Child returns the child stored under key.
func (n *Node) Child(key string) (*Node, bool) {
	c, ok := n.children[key]
	return c, ok
}

// Len returns the number of children of a branch or identifiers of a leaf.
func (n *Node) Len() int {
	if n.kind == KindLeaf {
		return len(n.skus)
	}
	return len(n.keys)
}

// SKUs returns the identifiers held by a leaf. Nil for branches.
func (n *Node) SKUs() []string {
	if n.kind != KindLeaf {
		return nil
	}
	out := make([]string, len(n.skus))
	copy(out, n.skus)
	return out
}

// UniqueSKUs returns the leaf identifiers with duplicates removed, keeping
// first-occurrence order.
func (n *Node) UniqueSKUs() []string {
	if n.kind != KindLeaf {
		return nil
	}
	seen := make(map[string]struct{}, len(n.skus))
	out := make([]string, 0, len(n.skus))
	for _, s := range n.skus {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Put attaches child under key, appending key to the order if it is new.
// Fails if n is a leaf.
func (n *Node) Put(key string, child *Node) error {
	if n.kind != KindBranch {
		return fmt.Errorf("put %q: node is a %s", key, n.kind)
	}
	if _, ok := n.children[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.children[key] = child
	return nil
}

func (n *Node) appendSKU(sku string) {
	n.skus = append(n.skus, sku)
}
