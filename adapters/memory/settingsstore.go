// Package memory provides in-memory implementations of storage ports,
// used in tests and for ephemeral runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/msmafra/sogeBot/domain/setting"
	"github.com/msmafra/sogeBot/ports"
)

// SettingsStore is an in-memory implementation of ports.SettingsStore.
type SettingsStore struct {
	mu      sync.RWMutex
	records map[string]map[string]string // namespace -> name -> value
}

// NewSettingsStore creates a new in-memory settings store.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{
		records: make(map[string]map[string]string),
	}
}

// Find retrieves a single record.
func (s *SettingsStore) Find(ctx context.Context, namespace, name string) (setting.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.records[namespace]
	if !ok {
		return setting.Record{}, false, nil
	}
	v, ok := ns[name]
	if !ok {
		return setting.Record{}, false, nil
	}
	return setting.Record{Namespace: namespace, Name: name, Value: v}, true, nil
}

// FindAll retrieves every record in a namespace, ordered by name.
func (s *SettingsStore) FindAll(ctx context.Context, namespace string) ([]setting.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.records[namespace]
	out := make([]setting.Record, 0, len(ns))
	for name, v := range ns {
		out = append(out, setting.Record{Namespace: namespace, Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Put creates or replaces a record.
func (s *SettingsStore) Put(ctx context.Context, rec setting.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.records[rec.Namespace]
	if !ok {
		ns = make(map[string]string)
		s.records[rec.Namespace] = ns
	}
	ns[rec.Name] = rec.Value
	return nil
}

// Delete removes a record if present.
func (s *SettingsStore) Delete(ctx context.Context, namespace, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ns, ok := s.records[namespace]; ok {
		delete(ns, name)
	}
	return nil
}

var _ ports.SettingsStore = (*SettingsStore)(nil)
