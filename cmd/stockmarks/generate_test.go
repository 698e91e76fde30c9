package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
)

// --- Mocks ---

type fakeAnalyzer struct {
	results map[string][]domanalysis.Assignment
	calls   []string
	// createdAt, when set, stamps every analysis with the same time
	createdAt int64
}

func (f *fakeAnalyzer) Analyze(_ context.Context, query string) (domanalysis.Analysis, error) {
	f.calls = append(f.calls, query)
	as, ok := f.results[query]
	if !ok {
		return domanalysis.Analysis{}, fmt.Errorf("search %q: %w", query, domain.ErrEmptyResult)
	}
	created := int64(len(f.calls))
	id := fmt.Sprintf("id-%d", created)
	if f.createdAt != 0 {
		created = f.createdAt
	}
	return domanalysis.NewPending(id, query, created).Complete(as), nil
}

func path(p ...string) []string { return p }

// --- Tests ---

func TestGenerate_MergesQueries(t *testing.T) {
	svc := &fakeAnalyzer{results: map[string][]domanalysis.Assignment{
		"watch": {
			{SKU: "1", Path: path("Apple", "Watch", "Black")},
			{SKU: "2", Path: path("Apple", "Watch", "Silver")},
		},
		"phone": {
			{SKU: "10", Path: path("Apple", "iPhone")},
		},
	}}

	doc, err := generate(context.Background(), svc, []string{"watch", "phone"}, false,
		"https://example.test/p/", zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.calls) != 2 || svc.calls[0] != "watch" || svc.calls[1] != "phone" {
		t.Errorf("queries not run in order: %v", svc.calls)
	}
	if !strings.HasPrefix(doc, "<!DOCTYPE NETSCAPE-Bookmark-file-1>") {
		t.Errorf("missing bookmark header:\n%s", doc)
	}
	for _, want := range []string{
		`HREF="https://example.test/p/1"`,
		`HREF="https://example.test/p/2"`,
		`HREF="https://example.test/p/10"`,
		">Apple</H3>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestGenerate_OverlapKeepsFirstQuery(t *testing.T) {
	results := map[string][]domanalysis.Assignment{
		"watch":        {{SKU: "1", Path: path("Apple", "Watch", "Silver")}},
		"silver watch": {{SKU: "1", Path: path("Watches", "Silver")}},
	}

	for name, createdAt := range map[string]int64{"distinct times": 0, "same time": 42} {
		t.Run(name, func(t *testing.T) {
			svc := &fakeAnalyzer{results: results, createdAt: createdAt}
			doc, err := generate(context.Background(), svc, []string{"watch", "silver watch"}, false,
				"https://example.test/p/", zap.NewNop())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(doc, ">Apple</H3>") || strings.Contains(doc, ">Watches</H3>") {
				t.Errorf("expected the first query's folder:\n%s", doc)
			}
		})
	}
}

func TestGenerate_AbortsOnFailure(t *testing.T) {
	svc := &fakeAnalyzer{results: map[string][]domanalysis.Assignment{
		"phone": {{SKU: "10", Path: path("Apple", "iPhone")}},
	}}

	_, err := generate(context.Background(), svc, []string{"nothing", "phone"}, false, "", zap.NewNop())
	if !errors.Is(err, domain.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if len(svc.calls) != 1 {
		t.Errorf("expected the run to stop after the failure, got calls %v", svc.calls)
	}
}

func TestGenerate_KeepGoing(t *testing.T) {
	svc := &fakeAnalyzer{results: map[string][]domanalysis.Assignment{
		"phone": {{SKU: "10", Path: path("Apple", "iPhone")}},
	}}

	doc, err := generate(context.Background(), svc, []string{"nothing", "phone"}, true,
		"https://example.test/p/", zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc, `HREF="https://example.test/p/10"`) {
		t.Errorf("expected surviving query in document:\n%s", doc)
	}
}

func TestGenerate_NothingCompleted(t *testing.T) {
	svc := &fakeAnalyzer{}

	_, err := generate(context.Background(), svc, []string{"a", "b"}, true, "", zap.NewNop())
	if !errors.Is(err, domain.ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	if !errors.Is(err, domain.ErrEmptyResult) {
		t.Errorf("expected query failures in the error chain, got %v", err)
	}
}
