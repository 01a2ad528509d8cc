// Package app composes the marketplace layer into a running application.
//
// The package wires the settlement engine in
// internal/app/services/marketplace with its collaborators and manages
// their lifecycle. It is not a business logic layer; operation semantics
// live in the marketplace service.
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── admin/          # Marketplace configuration
//	│   ├── service/        # Service listings and agreements
//	│   └── ask/            # Resale offers with escrow
//	├── storage/            # Store interfaces, memory and postgres backends
//	├── ledger/             # Settlement ledger (memory and Neo N3 backends)
//	├── custody/            # Asset minting and custody
//	├── events/             # Post-operation event dispatch
//	├── services/
//	│   └── marketplace/    # The settlement engine and escrow auditor
//	├── httpapi/            # REST handlers
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
//
// Dependency direction: cmd/marketd -> internal/app -> services/marketplace,
// which depends only on the store, ledger, and custody interfaces.
package app
