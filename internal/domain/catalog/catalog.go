// Package catalog holds the search-side value types: hits and result pages.
package catalog

import (
	"fmt"
	"regexp"
)

// Page size bounds accepted by the search service.
const (
	MinPageSize = 1
	MaxPageSize = 1000
)

var skuRegex = regexp.MustCompile(`^$|^\d+$`)

// Hit is a single product returned by the search service.
type Hit struct {
	SKU   string
	Title string
}

// ValidSKU reports whether sku is empty or purely numeric.
func ValidSKU(sku string) bool {
	return skuRegex.MatchString(sku)
}

// Page is one page of a search result set. Pages are 0-indexed; requesting
// Page == TotalPages yields zero hits.
type Page struct {
	TotalHits  int
	TotalPages int
	Page       int
	PageSize   int
	Hits       []Hit
}

// PageRequest identifies one page of a query.
type PageRequest struct {
	Query    string
	Page     int
	PageSize int
}

// Validate checks the page index and size bounds.
func (r PageRequest) Validate() error {
	if r.Page < 0 {
		return fmt.Errorf("page must be non-negative, got %d", r.Page)
	}
	if r.PageSize < MinPageSize || r.PageSize > MaxPageSize {
		return fmt.Errorf("page size must be between %d and %d, got %d", MinPageSize, MaxPageSize, r.PageSize)
	}
	return nil
}

// ClampPageSize forces size into [MinPageSize, MaxPageSize].
func ClampPageSize(size int) int {
	if size < MinPageSize {
		return MinPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
