package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/admin"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/ask"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/service"
	"github.com/Meridian-Network/marketplace_layer/internal/app/storage"
	"github.com/Meridian-Network/marketplace_layer/internal/errors"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu       sync.RWMutex
	config   *admin.Config
	services map[string]service.Record
	asks     map[string]ask.Record
}

var _ storage.ConfigStore = (*Store)(nil)
var _ storage.ServiceStore = (*Store)(nil)
var _ storage.AskStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		services: make(map[string]service.Record),
		asks:     make(map[string]ask.Record),
	}
}

// ConfigStore implementation ---------------------------------------------------

func (s *Store) CreateConfig(_ context.Context, cfg admin.Config) (admin.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config != nil {
		return admin.Config{}, errors.ErrAlreadyExists
	}

	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	stored := cfg
	s.config = &stored
	return cfg, nil
}

func (s *Store) UpdateConfig(_ context.Context, cfg admin.Config) (admin.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil {
		return admin.Config{}, errors.NotFound("config", "singleton")
	}

	cfg.CreatedAt = s.config.CreatedAt
	cfg.UpdatedAt = time.Now().UTC()

	stored := cfg
	s.config = &stored
	return cfg, nil
}

func (s *Store) GetConfig(_ context.Context) (admin.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return admin.Config{}, errors.NotFound("config", "singleton")
	}
	return *s.config, nil
}

// ServiceStore implementation --------------------------------------------------

func (s *Store) CreateService(_ context.Context, rec service.Record) (service.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[rec.AssetID]; exists {
		return service.Record{}, errors.ErrAlreadyExists
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Agreements = cloneAgreements(rec.Agreements)

	s.services[rec.AssetID] = rec
	return cloneService(rec), nil
}

func (s *Store) UpdateService(_ context.Context, rec service.Record) (service.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.services[rec.AssetID]
	if !ok {
		return service.Record{}, errors.NotFound("service", rec.AssetID)
	}

	rec.CreatedAt = original.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	rec.Agreements = cloneAgreements(rec.Agreements)

	s.services[rec.AssetID] = rec
	return cloneService(rec), nil
}

func (s *Store) GetService(_ context.Context, assetID string) (service.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.services[assetID]
	if !ok {
		return service.Record{}, errors.NotFound("service", assetID)
	}
	return cloneService(rec), nil
}

func (s *Store) ListServices(_ context.Context) ([]service.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]service.Record, 0, len(s.services))
	for _, rec := range s.services {
		result = append(result, cloneService(rec))
	}
	return result, nil
}

// AskStore implementation ------------------------------------------------------

func (s *Store) CreateAsk(_ context.Context, rec ask.Record) (ask.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.asks[rec.AssetID]; exists {
		return ask.Record{}, errors.ErrAlreadyExists
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.asks[rec.AssetID] = rec
	return rec, nil
}

func (s *Store) UpdateAsk(_ context.Context, rec ask.Record) (ask.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.asks[rec.AssetID]
	if !ok {
		return ask.Record{}, errors.NotFound("ask", rec.AssetID)
	}

	rec.CreatedAt = original.CreatedAt
	rec.UpdatedAt = time.Now().UTC()

	s.asks[rec.AssetID] = rec
	return rec, nil
}

func (s *Store) GetAsk(_ context.Context, assetID string) (ask.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.asks[assetID]
	if !ok {
		return ask.Record{}, errors.NotFound("ask", assetID)
	}
	return rec, nil
}

func (s *Store) DeleteAsk(_ context.Context, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.asks[assetID]; !ok {
		return errors.NotFound("ask", assetID)
	}
	delete(s.asks, assetID)
	return nil
}

func (s *Store) ListAsks(_ context.Context) ([]ask.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ask.Record, 0, len(s.asks))
	for _, rec := range s.asks {
		result = append(result, rec)
	}
	return result, nil
}

func cloneService(rec service.Record) service.Record {
	rec.Agreements = cloneAgreements(rec.Agreements)
	return rec
}

func cloneAgreements(in []service.Agreement) []service.Agreement {
	if in == nil {
		return nil
	}
	out := make([]service.Agreement, len(in))
	copy(out, in)
	return out
}
