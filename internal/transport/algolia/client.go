// Package algolia is a page fetcher over the retailer's Algolia multi-query endpoint.
package algolia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
	"github.com/kailas-cloud/stockmarks/internal/metrics"
)

// Defaults matching the public storefront search.
const (
	DefaultEndpoint     = "https://vtvkm5urpx-dsn.algolia.net/1/indexes/*/queries"
	DefaultAppID        = "VTVKM5URPX"
	DefaultIndexName    = "shopify_products_families"
	DefaultFacetFilters = `[["isMarketplace:false"]]`
	DefaultReferrer     = "https://www.jbhifi.com.au/"
	DefaultFilters      = `product.departmentCode != 62 AND NOT category_hierarchy:"Game cards" AND ` +
		`NOT category_hierarchy:"Music" AND NOT category_hierarchy:"TV Shows" AND ` +
		`NOT category_hierarchy:"DJ & Musical Instruments" AND NOT category_hierarchy:"Movies" AND ` +
		`NOT category_hierarchy:"Merchandise" AND NOT facets.Condition:"Renewed" AND price > 0 AND ` +
		`product_published = 1 AND availability.displayProduct = 1`
)

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 4096

// Config holds the search client settings.
type Config struct {
	Endpoint     string
	AppID        string
	APIKey       string
	IndexName    string
	Filters      string
	FacetFilters string
	Referrer     string
	UserAgent    string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client fetches result pages from the search service.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a search client. Empty fields fall back to the storefront defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.Endpoint, err)
	}
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.FacetFilters == "" {
		cfg.FacetFilters = DefaultFacetFilters
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{cfg: cfg, http: hc, logger: logger}, nil
}

type multiQueryRequest struct {
	Requests []indexQuery `json:"requests"`
}

type indexQuery struct {
	IndexName string `json:"indexName"`
	Params    string `json:"params"`
}

type multiQueryResponse struct {
	Results []queryResult `json:"results"`
}

// Required fields are pointers so absence is detectable.
type queryResult struct {
	NbHits      *int        `json:"nbHits"`
	NbPages     *int        `json:"nbPages"`
	Page        *int        `json:"page"`
	HitsPerPage *int        `json:"hitsPerPage"`
	Hits        []resultHit `json:"hits"`
	Index       *string     `json:"index"`
}

type resultHit struct {
	SKU   *string `json:"sku"`
	Title *string `json:"title"`
}

// FetchPage implements aggregate.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, req catalog.PageRequest) (catalog.Page, error) {
	if err := req.Validate(); err != nil {
		return catalog.Page{}, fmt.Errorf("%w: %w", domain.ErrContractViolation, err)
	}

	body, err := json.Marshal(multiQueryRequest{
		Requests: []indexQuery{{IndexName: c.cfg.IndexName, Params: c.params(req)}},
	})
	if err != nil {
		return catalog.Page{}, fmt.Errorf("marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return catalog.Page{}, fmt.Errorf("build search request: %w", err)
	}
	c.setHeaders(httpReq)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	metrics.SearchRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return catalog.Page{}, fmt.Errorf("search request page %d: %w", req.Page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return catalog.Page{}, &domain.NetworkError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	page, err := decodePage(resp.Body)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return catalog.Page{}, err
	}
	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()

	c.logger.Debug("Fetched search page",
		zap.String("query", req.Query),
		zap.Int("page", page.Page),
		zap.Int("total_pages", page.TotalPages),
		zap.Int("hits", len(page.Hits)),
		zap.Duration("duration", time.Since(start)),
	)
	return page, nil
}

func (c *Client) params(req catalog.PageRequest) string {
	v := url.Values{}
	v.Set("analytics", "false")
	v.Set("clickAnalytics", "false")
	v.Set("distinct", "true")
	v.Set("facetFilters", c.cfg.FacetFilters)
	v.Set("facets", "[]")
	v.Set("filters", c.cfg.Filters)
	v.Set("hitsPerPage", strconv.Itoa(req.PageSize))
	v.Set("maxValuesPerFacet", "100")
	v.Set("page", strconv.Itoa(req.Page))
	v.Set("query", req.Query)
	v.Set("tagFilters", "")
	return v.Encode()
}

func (c *Client) setHeaders(r *http.Request) {
	r.Header.Set("Accept", "*/*")
	// The endpoint expects the JSON body under a form content type.
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("x-algolia-api-key", c.cfg.APIKey)
	r.Header.Set("x-algolia-application-id", c.cfg.AppID)
	r.Header.Set("Cache-Control", "no-cache")
	if c.cfg.UserAgent != "" {
		r.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.Referrer != "" {
		r.Header.Set("Referer", c.cfg.Referrer)
	}
}

func decodePage(r io.Reader) (catalog.Page, error) {
	var out multiQueryResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return catalog.Page{}, fmt.Errorf("%w: decode response: %w", domain.ErrContractViolation, err)
	}
	if len(out.Results) != 1 {
		return catalog.Page{}, fmt.Errorf("%w: expected 1 result set, got %d",
			domain.ErrContractViolation, len(out.Results))
	}

	res := out.Results[0]
	if err := res.validate(); err != nil {
		return catalog.Page{}, fmt.Errorf("%w: %w", domain.ErrContractViolation, err)
	}

	hits := make([]catalog.Hit, len(res.Hits))
	for i, h := range res.Hits {
		if h.SKU == nil || h.Title == nil {
			return catalog.Page{}, fmt.Errorf("%w: hit %d missing sku or title", domain.ErrContractViolation, i)
		}
		if !catalog.ValidSKU(*h.SKU) {
			return catalog.Page{}, fmt.Errorf("%w: hit %d has malformed sku %q",
				domain.ErrContractViolation, i, *h.SKU)
		}
		hits[i] = catalog.Hit{SKU: *h.SKU, Title: *h.Title}
	}

	return catalog.Page{
		TotalHits:  *res.NbHits,
		TotalPages: *res.NbPages,
		Page:       *res.Page,
		PageSize:   *res.HitsPerPage,
		Hits:       hits,
	}, nil
}

func (q *queryResult) validate() error {
	var errs []error
	if q.NbHits == nil {
		errs = append(errs, errors.New("missing nbHits"))
	}
	if q.NbPages == nil {
		errs = append(errs, errors.New("missing nbPages"))
	}
	if q.Page == nil {
		errs = append(errs, errors.New("missing page"))
	}
	if q.HitsPerPage == nil {
		errs = append(errs, errors.New("missing hitsPerPage"))
	}
	if q.Hits == nil {
		errs = append(errs, errors.New("missing hits"))
	}
	if q.Index == nil {
		errs = append(errs, errors.New("missing index"))
	}
	return errors.Join(errs...)
}
