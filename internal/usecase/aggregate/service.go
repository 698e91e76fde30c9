package aggregate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
	logpkg "github.com/kailas-cloud/stockmarks/internal/logger"
)

// Service collects every page of a query into one ordered hit list.
type Service struct {
	pages          PageFetcher
	pageSize       int
	maxConcurrency int
}

// New creates an aggregation service requesting the largest page size allowed.
func New(pages PageFetcher) *Service {
	return &Service{pages: pages, pageSize: catalog.MaxPageSize}
}

// WithPageSize sets the page size, clamped to the accepted range.
func (s *Service) WithPageSize(size int) *Service {
	s.pageSize = catalog.ClampPageSize(size)
	return s
}

// WithMaxConcurrency bounds the number of in-flight page requests. 0 means unbounded.
func (s *Service) WithMaxConcurrency(n int) *Service {
	if n >= 0 {
		s.maxConcurrency = n
	}
	return s
}

// Aggregate fetches page 0 to learn the page count, then the remaining pages
// concurrently, and returns all hits ordered by page index. Any failed page
// fails the whole aggregation; sibling requests are not cancelled but their
// results are discarded.
func (s *Service) Aggregate(ctx context.Context, query string) ([]catalog.Hit, error) {
	log := logpkg.FromContext(ctx)

	first, err := s.pages.FetchPage(ctx, catalog.PageRequest{Query: query, Page: 0, PageSize: s.pageSize})
	if err != nil {
		return nil, fmt.Errorf("fetch page 0: %w", err)
	}
	if len(first.Hits) == 0 {
		return nil, fmt.Errorf("query %q: %w", query, domain.ErrEmptyResult)
	}
	if first.TotalPages <= 1 {
		return first.Hits, nil
	}
	if limit := maxPages(first.TotalHits, s.pageSize); first.TotalPages > limit {
		return nil, fmt.Errorf("%w: %d pages reported for %d hits at page size %d",
			domain.ErrContractViolation, first.TotalPages, first.TotalHits, s.pageSize)
	}

	log.Debug("Fetching remaining pages",
		zap.String("query", query),
		zap.Int("total_pages", first.TotalPages),
		zap.Int("total_hits", first.TotalHits),
	)

	// Each goroutine writes only its own slot; slots are read after Wait.
	rest := make([][]catalog.Hit, first.TotalPages-1)

	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	for page := 1; page < first.TotalPages; page++ {
		g.Go(func() error {
			p, err := s.pages.FetchPage(ctx, catalog.PageRequest{Query: query, Page: page, PageSize: s.pageSize})
			if err != nil {
				return fmt.Errorf("fetch page %d: %w", page, err)
			}
			rest[page-1] = p.Hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped per page
	}

	total := len(first.Hits)
	for _, hits := range rest {
		total += len(hits)
	}
	all := make([]catalog.Hit, 0, total)
	all = append(all, first.Hits...)
	for _, hits := range rest {
		all = append(all, hits...)
	}
	return all, nil
}

// maxPages is the largest page count consistent with total hits, allowing one trailing empty page.
func maxPages(totalHits, pageSize int) int {
	return (totalHits+pageSize-1)/pageSize + 1
}
