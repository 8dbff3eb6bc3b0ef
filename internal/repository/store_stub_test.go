package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
)

var errStubUnavailable = errors.New("connection refused")

type memoryKV struct {
	mu      sync.Mutex
	data    map[string]json.RawMessage
	failGet bool
	failSet bool
	sets    int
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]json.RawMessage)}
}

func (m *memoryKV) Get(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errStubUnavailable
	}
	raw, ok := m.data[key]
	if !ok {
		return nil, appErrors.ErrKeyNotFound
	}
	return append(json.RawMessage(nil), raw...), nil
}

func (m *memoryKV) Set(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errStubUnavailable
	}
	m.sets++
	m.data[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (m *memoryKV) SetMany(_ context.Context, entries map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errStubUnavailable
	}
	for key, value := range entries {
		m.sets++
		m.data[key] = append(json.RawMessage(nil), value...)
	}
	return nil
}

func (m *memoryKV) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data[key])
}
