package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AnTengye/auctionhub/backend/model"
)

// ErrStoreFull is returned by Insert once a capped memory store is at capacity.
// Stored properties are never evicted, since a forgotten id would be
// re-imported instead of reported as a duplicate.
var ErrStoreFull = errors.New("property store is full")

// MemoryStore is an in-memory property store.
// Exists and Insert share one lock, so check-then-insert cannot race.
type MemoryStore struct {
	properties    map[string]*model.Property
	mu            sync.RWMutex
	maxProperties int // 0 = unlimited
}

func NewMemoryStore(maxProperties int) *MemoryStore {
	if maxProperties < 0 {
		maxProperties = 0
	}
	slog.Info("memory property store initialized", "max_properties", maxProperties)
	return &MemoryStore{
		properties:    make(map[string]*model.Property),
		maxProperties: maxProperties,
	}
}

func (s *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.properties[id]
	return ok, nil
}

func (s *MemoryStore) Insert(_ context.Context, p *model.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.properties[p.ID]; ok {
		return ErrDuplicate
	}
	if s.maxProperties > 0 && len(s.properties) >= s.maxProperties {
		return fmt.Errorf("%w (max %d)", ErrStoreFull, s.maxProperties)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.properties[p.ID] = p
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// List returns the newest properties first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*model.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Property, 0, len(s.properties))
	for _, p := range s.properties {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[id]; !ok {
		return ErrNotFound
	}
	delete(s.properties, id)
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.properties), nil
}

func (s *MemoryStore) Close() error { return nil }
