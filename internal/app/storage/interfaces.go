package storage

import (
	"context"

	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/admin"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/ask"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/service"
)

// ConfigStore persists the singleton marketplace configuration. Absence is
// reported with errors.ErrNotFound; CreateConfig fails once a record exists.
type ConfigStore interface {
	CreateConfig(ctx context.Context, cfg admin.Config) (admin.Config, error)
	UpdateConfig(ctx context.Context, cfg admin.Config) (admin.Config, error)
	GetConfig(ctx context.Context) (admin.Config, error)
}

// ServiceStore persists service listing records keyed by asset identifier.
type ServiceStore interface {
	CreateService(ctx context.Context, rec service.Record) (service.Record, error)
	UpdateService(ctx context.Context, rec service.Record) (service.Record, error)
	GetService(ctx context.Context, assetID string) (service.Record, error)
	ListServices(ctx context.Context) ([]service.Record, error)
}

// AskStore persists resale offers, at most one per asset. A consumed ask is
// deleted so offer presence is always an explicit store lookup.
type AskStore interface {
	CreateAsk(ctx context.Context, rec ask.Record) (ask.Record, error)
	UpdateAsk(ctx context.Context, rec ask.Record) (ask.Record, error)
	GetAsk(ctx context.Context, assetID string) (ask.Record, error)
	DeleteAsk(ctx context.Context, assetID string) error
	ListAsks(ctx context.Context) ([]ask.Record, error)
}
