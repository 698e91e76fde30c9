package pagecache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/db"
	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
)

type mockFetcher struct {
	page  catalog.Page
	err   error
	calls int
}

func (m *mockFetcher) FetchPage(_ context.Context, req catalog.PageRequest) (catalog.Page, error) {
	m.calls++
	if m.err != nil {
		return catalog.Page{}, m.err
	}
	p := m.page
	p.Page = req.Page
	return p, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.lastTTL = ttl
	return nil
}

func newTestFetcher(t *testing.T, inner *mockFetcher) (*CachedFetcher, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{data: make(map[string][]byte)}
	return New(inner, ms, "stockmarks:", time.Hour, nil, zap.NewNop()), ms
}
