package export

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	"github.com/kailas-cloud/stockmarks/internal/domain/bookmark"
	"github.com/kailas-cloud/stockmarks/internal/domain/grouping"
)

// --- Mocks ---

type mockLister struct {
	list []domanalysis.Analysis
	err  error
}

func (m *mockLister) List(_ context.Context) ([]domanalysis.Analysis, error) {
	return m.list, m.err
}

func completed(id string, createdAt int64, assignments ...domanalysis.Assignment) domanalysis.Analysis {
	return domanalysis.NewPending(id, "q-"+id, createdAt).Complete(assignments)
}

func assign(sku string, path ...string) domanalysis.Assignment {
	return domanalysis.Assignment{SKU: sku, Path: path}
}

// --- Tests ---

func TestMerge_OldestWinsAndNumericOrder(t *testing.T) {
	older := completed("a", 100,
		assign("10", "Apple", "Watch", "Black"),
		assign("9", "Apple", "Watch", "Silver"),
	)
	newer := completed("b", 200,
		assign("9", "Apple", "Watch", "Gold"),
		assign("100", "Samsung", "Galaxy"),
	)
	failed := domanalysis.NewPending("c", "q", 300).Fail(errors.New("boom"))

	want := []grouping.Item{
		{SKU: "9", Path: grouping.Path{"Apple", "Watch", "Silver"}},
		{SKU: "10", Path: grouping.Path{"Apple", "Watch", "Black"}},
		{SKU: "100", Path: grouping.Path{"Samsung", "Galaxy"}},
	}

	// merge must not depend on listing order
	for name, list := range map[string][]domanalysis.Analysis{
		"newest first": {newer, failed, older},
		"oldest first": {older, failed, newer},
	} {
		t.Run(name, func(t *testing.T) {
			items, err := Merge(list)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(want, items); diff != "" {
				t.Errorf("items mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Ties keep the newest-first listing order, so the later listed analysis wins.
func TestMerge_SameTimestampLastListedWins(t *testing.T) {
	a := completed("a", 100, assign("9", "Apple", "Watch", "Silver"))
	b := completed("b", 100, assign("9", "Apple", "Watch", "Gold"))

	items, err := Merge([]domanalysis.Analysis{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []grouping.Item{
		{SKU: "9", Path: grouping.Path{"Apple", "Watch", "Gold"}},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_NothingToExport(t *testing.T) {
	for name, list := range map[string][]domanalysis.Analysis{
		"empty":        nil,
		"only pending": {domanalysis.NewPending("a", "q", 1)},
		"only failed":  {domanalysis.NewPending("a", "q", 1).Fail(errors.New("x"))},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Merge(list); !errors.Is(err, domain.ErrNothingToExport) {
				t.Errorf("expected ErrNothingToExport, got %v", err)
			}
		})
	}
}

func TestCompareSKU(t *testing.T) {
	skus := []string{"b", "0100", "20", "3", "a", "007"}
	slices.SortFunc(skus, compareSKU)
	want := []string{"3", "007", "20", "0100", "a", "b"}
	if diff := cmp.Diff(want, skus); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_CrossAnalysisConflict(t *testing.T) {
	_, err := Render([]domanalysis.Analysis{
		completed("a", 1, assign("1", "Apple", "Watch")),
		completed("b", 2, assign("2", "Apple", "Watch", "Black")),
	})
	if !errors.Is(err, domain.ErrStructuralConflict) {
		t.Fatalf("expected ErrStructuralConflict, got %v", err)
	}
}

func TestRender_LinkBase(t *testing.T) {
	doc, err := Render(
		[]domanalysis.Analysis{completed("a", 1, assign("42", "TV"))},
		bookmark.WithLinkBase("https://example.test/p/"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc, `<DT><A HREF="https://example.test/p/42">TV</A>`) {
		t.Errorf("link not rendered:\n%s", doc)
	}
}

func TestService_Export(t *testing.T) {
	svc := New(&mockLister{list: []domanalysis.Analysis{
		completed("a", 1, assign("1", "Apple", "Watch", "Black"), assign("2", "Apple", "Watch", "Silver")),
	}}, "", "")

	doc, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.FileName != bookmark.DefaultFileName {
		t.Errorf("unexpected file name: %s", doc.FileName)
	}
	if !strings.HasPrefix(doc.ContentType, bookmark.MIMEType) {
		t.Errorf("unexpected content type: %s", doc.ContentType)
	}
	if strings.Count(doc.Body, "<DT><A ") != 2 {
		t.Errorf("expected 2 links:\n%s", doc.Body)
	}
}

func TestService_ExportErrors(t *testing.T) {
	if _, err := New(&mockLister{}, "", "").Export(context.Background()); !errors.Is(err, domain.ErrNothingToExport) {
		t.Errorf("expected ErrNothingToExport, got %v", err)
	}

	storeErr := errors.New("db down")
	if _, err := New(&mockLister{err: storeErr}, "", "").Export(context.Background()); !errors.Is(err, storeErr) {
		t.Errorf("expected store error, got %v", err)
	}
}
