package system

import "context"

// Service is a background component with a managed lifecycle. The event
// dispatcher and the escrow auditor implement it so the manager can bring
// them up together and shut them down in reverse order.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
