// Package analysis models one product query and its classified attribute paths.
package analysis

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/stockmarks/internal/domain/grouping"
)

// MaxQueryLength is the maximum query length in bytes.
const MaxQueryLength = 512

// Status is the lifecycle state of an analysis.
type Status string

// Lifecycle states.
const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Assignment maps one SKU to its attribute path.
type Assignment struct {
	SKU  string
	Path grouping.Path
}

// Classification is the oracle's answer for one query.
type Classification struct {
	Excluded    []string
	Assignments []Assignment
	Thinking    string
	TotalTokens int
}

// Analysis is one query's lifecycle record (value object).
type Analysis struct {
	id          string
	query       string
	status      Status
	assignments []Assignment
	failure     string
	createdAt   int64
}

// NormalizeQuery trims the query and validates its length.
func NormalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("query is required")
	}
	if len(q) > MaxQueryLength {
		return "", fmt.Errorf("query too long (max %d bytes)", MaxQueryLength)
	}
	return q, nil
}

// NewPending creates a pending analysis.
func NewPending(id, query string, createdAt int64) Analysis {
	return Analysis{id: id, query: query, status: StatusPending, createdAt: createdAt}
}

// Reconstruct creates an Analysis without validation (storage hydration).
func Reconstruct(id, query string, status Status, assignments []Assignment, failure string, createdAt int64) Analysis {
	return Analysis{
		id:          id,
		query:       query,
		status:      status,
		assignments: assignments,
		failure:     failure,
		createdAt:   createdAt,
	}
}

// Complete returns a copy marked complete with the given assignments.
func (a Analysis) Complete(assignments []Assignment) Analysis {
	a.status = StatusComplete
	a.assignments = assignments
	a.failure = ""
	return a
}

// Fail returns a copy marked failed with the error message.
func (a Analysis) Fail(err error) Analysis {
	a.status = StatusFailed
	a.assignments = nil
	if err != nil {
		a.failure = err.Error()
	}
	return a
}

// Restart returns a copy back in the pending state.
func (a Analysis) Restart() Analysis {
	a.status = StatusPending
	a.assignments = nil
	a.failure = ""
	return a
}

// ID returns the analysis identifier.
func (a Analysis) ID() string { return a.id }

// Query returns the search query.
func (a Analysis) Query() string { return a.query }

// Status returns the lifecycle state.
func (a Analysis) Status() Status { return a.status }

// Assignments returns the SKU → path assignments (complete analyses only).
func (a Analysis) Assignments() []Assignment { return a.assignments }

// Failure returns the failure message of a failed analysis.
func (a Analysis) Failure() string { return a.failure }

// CreatedAt returns the creation timestamp (unix millis).
func (a Analysis) CreatedAt() int64 { return a.createdAt }

// ProductCount returns the number of classified products.
func (a Analysis) ProductCount() int { return len(a.assignments) }

// Items converts the assignments into grouping input.
func (a Analysis) Items() []grouping.Item {
	items := make([]grouping.Item, len(a.assignments))
	for i, as := range a.assignments {
		items[i] = grouping.Item{SKU: as.SKU, Path: as.Path}
	}
	return items
}
