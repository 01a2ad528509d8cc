package app

import (
	"context"
	"time"

	"github.com/Meridian-Network/marketplace_layer/internal/app/custody"
	"github.com/Meridian-Network/marketplace_layer/internal/app/events"
	"github.com/Meridian-Network/marketplace_layer/internal/app/ledger"
	"github.com/Meridian-Network/marketplace_layer/internal/app/services/marketplace"
	"github.com/Meridian-Network/marketplace_layer/internal/app/storage"
	"github.com/Meridian-Network/marketplace_layer/internal/app/storage/memory"
	"github.com/Meridian-Network/marketplace_layer/internal/app/system"
	"github.com/Meridian-Network/marketplace_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Configs  storage.ConfigStore
	Services storage.ServiceStore
	Asks     storage.AskStore
}

// Options tunes optional collaborators. Zero values select in-process
// defaults.
type Options struct {
	Ledger        ledger.Ledger
	Custodian     custody.Custodian
	Authority     custody.Authority
	Sinks         []events.Sink
	AuditInterval time.Duration
}

// Application ties the marketplace service and its background workers
// together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Marketplace *marketplace.Service
	Ledger      ledger.Ledger
	Events      *events.Dispatcher
	Auditor     *marketplace.EscrowAuditor
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Configs == nil {
		stores.Configs = mem
	}
	if stores.Services == nil {
		stores.Services = mem
	}
	if stores.Asks == nil {
		stores.Asks = mem
	}

	if opts.Ledger == nil {
		opts.Ledger = ledger.NewMemoryLedger()
	}
	authority := opts.Authority
	if opts.Custodian == nil {
		authority = custody.NewAuthority("marketplace", "custody-authority")
		opts.Custodian = custody.NewMemoryCustodian(authority)
	}

	sinks := opts.Sinks
	if len(sinks) == 0 {
		sinks = []events.Sink{events.NewLogSink(log.WithField("component", "events"))}
	}
	dispatcher := events.NewDispatcher(log, sinks...)

	marketService := marketplace.New(
		stores.Configs,
		stores.Services,
		stores.Asks,
		opts.Ledger,
		opts.Custodian,
		authority,
		dispatcher,
		log.WithField("component", "marketplace"),
	)

	auditor := marketplace.NewEscrowAuditor(stores.Asks, opts.Ledger, opts.AuditInterval, log.WithField("component", "escrow-auditor"))

	manager := system.NewManager()
	manager.Register(dispatcher)
	manager.Register(auditor)

	return &Application{
		manager:     manager,
		log:         log,
		Marketplace: marketService,
		Ledger:      opts.Ledger,
		Events:      dispatcher,
		Auditor:     auditor,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) {
	a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.StartAll(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.StopAll(ctx)
}
