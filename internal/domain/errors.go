package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals malformed caller input (e.g. an empty query).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStateConflict signals an operation not allowed in the resource's current state.
	ErrStateConflict = errors.New("state conflict")
	// ErrNothingToExport signals that no completed analyses exist.
	ErrNothingToExport = errors.New("nothing to export")

	// ErrNetwork signals a non-success transport status from the search service.
	ErrNetwork = errors.New("network error")
	// ErrContractViolation signals a collaborator response of unexpected shape.
	ErrContractViolation = errors.New("contract violation")
	// ErrEmptyResult signals a valid search outcome with no hits.
	ErrEmptyResult = errors.New("empty result")

	// ErrInvalidPath signals a malformed attribute path.
	ErrInvalidPath = errors.New("invalid attribute path")
	// ErrStructuralConflict signals attribute paths disagreeing on branch/leaf shape.
	ErrStructuralConflict = errors.New("structural conflict")
	// ErrEmptyLeaf signals a leaf without identifiers (internal invariant breach).
	ErrEmptyLeaf = errors.New("empty leaf")

	// ErrClassifierError signals a classification provider failure.
	ErrClassifierError = errors.New("classifier error")
	// ErrClassifierQuotaExceeded signals an exhausted classifier token budget.
	ErrClassifierQuotaExceeded = errors.New("classifier quota exceeded")
)

// NetworkError wraps ErrNetwork with the response status and body for diagnostics.
type NetworkError struct {
	StatusCode int
	Body       string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d, body: %s", ErrNetwork.Error(), e.StatusCode, e.Body)
}

func (e *NetworkError) Unwrap() error { return ErrNetwork }

// InvalidPathError wraps ErrInvalidPath with the offending identifier.
type InvalidPathError struct {
	SKU    string
	Path   []string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("%s for %q %s: %s", ErrInvalidPath.Error(), e.SKU, formatPath(e.Path), e.Reason)
}

func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// StructuralConflictError wraps ErrStructuralConflict with the identifier, its full path
// and the index of the segment where the shapes disagree.
type StructuralConflictError struct {
	SKU       string
	Path      []string
	Segment   int
	WantLeaf  bool
	FoundLeaf bool
}

func (e *StructuralConflictError) Error() string {
	want, found := "branch", "branch"
	if e.WantLeaf {
		want = "leaf"
	}
	if e.FoundLeaf {
		found = "leaf"
	}
	return fmt.Sprintf("%s: %q %s expects %s at segment %d (%q), found %s",
		ErrStructuralConflict.Error(), e.SKU, formatPath(e.Path), want, e.Segment, e.segmentValue(), found)
}

func (e *StructuralConflictError) Unwrap() error { return ErrStructuralConflict }

func (e *StructuralConflictError) segmentValue() string {
	if e.Segment >= 0 && e.Segment < len(e.Path) {
		return e.Path[e.Segment]
	}
	return ""
}

// EmptyLeafError wraps ErrEmptyLeaf with the key of the offending leaf.
type EmptyLeafError struct {
	Key string
}

func (e *EmptyLeafError) Error() string {
	return fmt.Sprintf("%s: key=%q", ErrEmptyLeaf.Error(), e.Key)
}

func (e *EmptyLeafError) Unwrap() error { return ErrEmptyLeaf }

func formatPath(path []string) string {
	return "[" + strings.Join(path, " > ") + "]"
}
