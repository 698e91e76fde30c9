package analysis

import (
	"context"
	"maps"
	"slices"
	"testing"

	"go.uber.org/zap"
)

// memStore is an in-memory stand-in for the indexed hash commands the repo uses.
type memStore struct {
	hashes map[string]map[string]string
	lists  map[string][]string
	err    error
}

func newMemStore() *memStore {
	return &memStore{hashes: make(map[string]map[string]string), lists: make(map[string][]string)}
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.hashes[key], nil
}

func (m *memStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = m.hashes[k]
	}
	return out, nil
}

func (m *memStore) PutIndexed(_ context.Context, key string, fields map[string]string, index, id string) error {
	if m.err != nil {
		return m.err
	}
	m.hashes[key] = maps.Clone(fields)
	m.lists[index] = append([]string{id}, slices.DeleteFunc(m.lists[index], func(v string) bool { return v == id })...)
	return nil
}

func (m *memStore) DelIndexed(_ context.Context, key, index, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.hashes[key]
	delete(m.hashes, key)
	m.lists[index] = slices.DeleteFunc(m.lists[index], func(v string) bool { return v == id })
	return ok, nil
}

func (m *memStore) LRange(_ context.Context, key string, _, _ int64) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.lists[key]), nil
}

func newTestRepo(t *testing.T) (*Repo, *memStore) {
	t.Helper()
	ms := newMemStore()
	return New(ms, "test:", zap.NewNop()), ms
}
