package algolia

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
	"github.com/kailas-cloud/stockmarks/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterDomainMetrics()
	os.Exit(m.Run())
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Config{
		Endpoint:  server.URL + "/1/indexes/*/queries",
		APIKey:    "test-key",
		AppID:     "TESTAPP",
		Filters:   "price > 0",
		UserAgent: "stockmarks-test",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func writeResult(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func TestFetchPage_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("x-algolia-api-key") != "test-key" {
			t.Errorf("unexpected api key header: %q", r.Header.Get("x-algolia-api-key"))
		}
		if r.Header.Get("x-algolia-application-id") != "TESTAPP" {
			t.Errorf("unexpected app id header: %q", r.Header.Get("x-algolia-application-id"))
		}
		if r.Header.Get("User-Agent") != "stockmarks-test" {
			t.Errorf("unexpected user agent: %q", r.Header.Get("User-Agent"))
		}

		var body multiQueryRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Requests) != 1 || body.Requests[0].IndexName != DefaultIndexName {
			t.Fatalf("unexpected requests: %+v", body.Requests)
		}
		params, err := url.ParseQuery(body.Requests[0].Params)
		if err != nil {
			t.Fatalf("parse params: %v", err)
		}
		if params.Get("query") != "iphone 16" || params.Get("page") != "2" || params.Get("hitsPerPage") != "1000" {
			t.Errorf("unexpected params: %v", params)
		}
		if params.Get("facetFilters") != DefaultFacetFilters || params.Get("filters") != "price > 0" {
			t.Errorf("unexpected filters: %v", params)
		}

		writeResult(w, `{"results":[{"nbHits":2250,"nbPages":3,"page":2,"hitsPerPage":1000,
			"index":"shopify_products_families",
			"hits":[{"sku":"796240","title":"iPhone 16 128GB (Black)"},{"sku":"","title":"Gift card"}]}]}`)
	})

	page, err := c.FetchPage(context.Background(), catalog.PageRequest{Query: "iphone 16", Page: 2, PageSize: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalHits != 2250 || page.TotalPages != 3 || page.Page != 2 || page.PageSize != 1000 {
		t.Errorf("unexpected page meta: %+v", page)
	}
	if len(page.Hits) != 2 || page.Hits[0].SKU != "796240" || page.Hits[1].SKU != "" {
		t.Errorf("unexpected hits: %+v", page.Hits)
	}
}

func TestFetchPage_NonOKStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"message":"rate limited"}`)
	})

	_, err := c.FetchPage(context.Background(), catalog.PageRequest{Query: "tv", PageSize: 10})
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	var ne *domain.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %T", err)
	}
	if ne.StatusCode != http.StatusTooManyRequests || ne.Body != `{"message":"rate limited"}` {
		t.Errorf("unexpected network error: %+v", ne)
	}
}

func TestFetchPage_ContractViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"no results", `{"results":[]}`},
		{"two results", `{"results":[
			{"nbHits":0,"nbPages":0,"page":0,"hitsPerPage":10,"index":"i","hits":[]},
			{"nbHits":0,"nbPages":0,"page":0,"hitsPerPage":10,"index":"i","hits":[]}]}`},
		{"missing nbPages", `{"results":[{"nbHits":0,"page":0,"hitsPerPage":10,"index":"i","hits":[]}]}`},
		{"alphanumeric sku", `{"results":[{"nbHits":1,"nbPages":1,"page":0,"hitsPerPage":10,"index":"i",
			"hits":[{"sku":"AB12","title":"x"}]}]}`},
		{"numeric sku type", `{"results":[{"nbHits":1,"nbPages":1,"page":0,"hitsPerPage":10,"index":"i",
			"hits":[{"sku":123,"title":"x"}]}]}`},
		{"missing title", `{"results":[{"nbHits":1,"nbPages":1,"page":0,"hitsPerPage":10,"index":"i",
			"hits":[{"sku":"1"}]}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeResult(w, tc.body)
			})
			_, err := c.FetchPage(context.Background(), catalog.PageRequest{Query: "x", PageSize: 10})
			if !errors.Is(err, domain.ErrContractViolation) {
				t.Errorf("expected ErrContractViolation, got %v", err)
			}
		})
	}
}

func TestFetchPage_InvalidRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	})

	for _, req := range []catalog.PageRequest{
		{Query: "x", Page: -1, PageSize: 10},
		{Query: "x", Page: 0, PageSize: 0},
		{Query: "x", Page: 0, PageSize: 1001},
	} {
		if _, err := c.FetchPage(context.Background(), req); !errors.Is(err, domain.ErrContractViolation) {
			t.Errorf("request %+v: expected ErrContractViolation, got %v", req, err)
		}
	}
	if called {
		t.Error("invalid requests must not reach the server")
	}
}

func TestNewClient_Defaults(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error without api key")
	}

	c, err := NewClient(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.cfg.Endpoint != DefaultEndpoint || c.cfg.AppID != DefaultAppID || c.cfg.IndexName != DefaultIndexName {
		t.Errorf("defaults not applied: %+v", c.cfg)
	}
}
