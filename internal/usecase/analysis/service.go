// Package analysis runs product queries through search and classification
// and tracks each run from submission to a persisted result.
package analysis

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	logpkg "github.com/kailas-cloud/stockmarks/internal/logger"
	"github.com/kailas-cloud/stockmarks/internal/metrics"
)

// DefaultTimeout bounds one analysis run.
const DefaultTimeout = 5 * time.Minute

// Service orchestrates analyses. Pending and failed runs live in memory;
// completed runs are handed to the repository.
type Service struct {
	search     Aggregator
	classifier domanalysis.Classifier
	repo       Repository
	logger     *zap.Logger

	timeout time.Duration
	locale  language.Tag
	now     func() time.Time
	newID   func() string

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]domanalysis.Analysis
}

// New creates an analysis service.
func New(search Aggregator, classifier domanalysis.Classifier, repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		search:     search,
		classifier: classifier,
		repo:       repo,
		logger:     logger,
		timeout:    DefaultTimeout,
		locale:     language.English,
		now:        time.Now,
		newID:      uuid.NewString,
		baseCtx:    ctx,
		cancel:     cancel,
		inflight:   make(map[string]domanalysis.Analysis),
	}
}

// WithTimeout sets the per-run deadline for synchronous and background analyses.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithLocale sets the collation used to order products before classification.
func (s *Service) WithLocale(tag language.Tag) *Service {
	s.locale = tag
	return s
}

// Analyze runs one query synchronously and persists the result.
// The run is bounded by the same timeout as background analyses.
func (s *Service) Analyze(ctx context.Context, query string) (domanalysis.Analysis, error) {
	q, err := domanalysis.NormalizeQuery(query)
	if err != nil {
		return domanalysis.Analysis{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a := domanalysis.NewPending(s.newID(), q, s.now().UnixMilli())
	done, err := s.execute(ctx, a)
	if err != nil {
		return domanalysis.Analysis{}, err
	}
	if err := s.repo.Save(ctx, done); err != nil {
		return domanalysis.Analysis{}, fmt.Errorf("save analysis: %w", err)
	}
	return done, nil
}

// Submit registers a pending analysis and runs it in the background.
func (s *Service) Submit(ctx context.Context, query string) (domanalysis.Analysis, error) {
	q, err := domanalysis.NormalizeQuery(query)
	if err != nil {
		return domanalysis.Analysis{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if s.baseCtx.Err() != nil {
		return domanalysis.Analysis{}, fmt.Errorf("service is shutting down: %w", domain.ErrStateConflict)
	}

	a := domanalysis.NewPending(s.newID(), q, s.now().UnixMilli())
	s.mu.Lock()
	s.inflight[a.ID()] = a
	s.mu.Unlock()

	logpkg.FromContext(ctx).Info("Analysis submitted", zap.String("analysis_id", a.ID()), zap.String("query", q))
	s.launch(a)
	return a, nil
}

// Retry restarts a failed analysis.
func (s *Service) Retry(ctx context.Context, id string) (domanalysis.Analysis, error) {
	s.mu.Lock()
	a, ok := s.inflight[id]
	prev := a.Status()
	if ok && prev == domanalysis.StatusFailed {
		a = a.Restart()
		s.inflight[id] = a
	}
	s.mu.Unlock()

	if !ok {
		if _, err := s.repo.Get(ctx, id); err != nil {
			return domanalysis.Analysis{}, err //nolint:wrapcheck // domain errors pass through
		}
		return domanalysis.Analysis{}, fmt.Errorf("analysis %q already complete: %w", id, domain.ErrStateConflict)
	}
	// Only a failed run may be restarted; a pending one is still executing.
	if prev != domanalysis.StatusFailed {
		return domanalysis.Analysis{}, fmt.Errorf("analysis %q is %s: %w", id, prev, domain.ErrStateConflict)
	}
	s.launch(a)
	return a, nil
}

// Get returns an analysis by ID, in-flight runs first.
func (s *Service) Get(ctx context.Context, id string) (domanalysis.Analysis, error) {
	s.mu.Lock()
	a, ok := s.inflight[id]
	s.mu.Unlock()
	if ok {
		return a, nil
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return domanalysis.Analysis{}, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}

// List returns in-flight runs (newest first) followed by persisted analyses.
func (s *Service) List(ctx context.Context) ([]domanalysis.Analysis, error) {
	s.mu.Lock()
	out := make([]domanalysis.Analysis, 0, len(s.inflight))
	for _, a := range s.inflight {
		out = append(out, a)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b domanalysis.Analysis) int {
		if c := cmp.Compare(b.CreatedAt(), a.CreatedAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})

	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return append(out, stored...), nil
}

// Delete removes a failed or completed analysis. Pending runs cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	a, ok := s.inflight[id]
	if ok && a.Status() != domanalysis.StatusPending {
		delete(s.inflight, id)
	}
	s.mu.Unlock()

	if ok {
		if a.Status() == domanalysis.StatusPending {
			return fmt.Errorf("analysis %q is still running: %w", id, domain.ErrStateConflict)
		}
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return nil
}

// Wait blocks until every background run has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown stops accepting runs and waits for in-flight ones.
// When ctx expires first, remaining runs are cancelled.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return fmt.Errorf("analyses cancelled on shutdown: %w", ctx.Err())
	}
}

func (s *Service) launch(a domanalysis.Analysis) {
	s.wg.Add(1)
	metrics.AnalysesInFlight.Inc()
	go func() {
		defer s.wg.Done()
		defer metrics.AnalysesInFlight.Dec()
		s.run(a)
	}()
}

// run executes a pending analysis on a context detached from the submitting request.
func (s *Service) run(a domanalysis.Analysis) {
	log := s.logger.With(zap.String("analysis_id", a.ID()))
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()
	ctx = logpkg.ContextWithLogger(ctx, log)

	done, err := s.execute(ctx, a)
	if err == nil {
		err = s.repo.Save(ctx, done)
		if err != nil {
			err = fmt.Errorf("save analysis: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warn("Analysis failed", zap.String("query", a.Query()), zap.Error(err))
		s.inflight[a.ID()] = a.Fail(err)
		return
	}
	delete(s.inflight, a.ID())
}

// execute aggregates, classifies and validates one query.
func (s *Service) execute(ctx context.Context, a domanalysis.Analysis) (domanalysis.Analysis, error) {
	start := time.Now()
	log := logpkg.FromContext(ctx)

	done, err := s.classify(ctx, a)

	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(string(domanalysis.StatusFailed)).Inc()
		return domanalysis.Analysis{}, err
	}
	metrics.AnalysesTotal.WithLabelValues(string(domanalysis.StatusComplete)).Inc()

	log.Info("Analysis complete",
		zap.String("analysis_id", done.ID()),
		zap.String("query", done.Query()),
		zap.Int("products", done.ProductCount()),
		zap.Duration("duration", time.Since(start)),
	)
	return done, nil
}

func (s *Service) classify(ctx context.Context, a domanalysis.Analysis) (domanalysis.Analysis, error) {
	hits, err := s.search.Aggregate(ctx, a.Query())
	if err != nil {
		return domanalysis.Analysis{}, fmt.Errorf("search %q: %w", a.Query(), err)
	}

	products := prepareProducts(hits, s.locale)
	if len(products) == 0 {
		return domanalysis.Analysis{}, fmt.Errorf("search %q: no linkable products: %w", a.Query(), domain.ErrEmptyResult)
	}

	cls, err := s.classifier.Classify(ctx, a.Query(), products)
	if err != nil {
		return domanalysis.Analysis{}, fmt.Errorf("classify %q: %w", a.Query(), err)
	}

	assignments := filterAssignments(cls, products)
	if dropped := len(cls.Assignments) - len(assignments); dropped > 0 {
		logpkg.FromContext(ctx).Debug("Dropped classifier assignments",
			zap.Int("dropped", dropped),
			zap.Int("excluded", len(cls.Excluded)),
		)
	}
	if err := validateAssignments(assignments); err != nil {
		return domanalysis.Analysis{}, fmt.Errorf("classify %q: %w", a.Query(), err)
	}
	return a.Complete(assignments), nil
}
