package marketplace

import (
	"context"
	"sync"
	"time"

	"github.com/Meridian-Network/marketplace_layer/internal/app/ledger"
	"github.com/Meridian-Network/marketplace_layer/internal/app/metrics"
	"github.com/Meridian-Network/marketplace_layer/internal/app/storage"
	"github.com/Meridian-Network/marketplace_layer/pkg/logger"
)

// EscrowAuditor periodically sweeps open asks and verifies the escrow
// invariant: every ask's escrow equals its ask price, and the ask's ledger
// account actually holds that amount. Findings are logged and counted; the
// auditor never mutates state.
type EscrowAuditor struct {
	asks     storage.AskStore
	ledger   ledger.Ledger
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewEscrowAuditor creates an auditor sweeping at the given interval.
func NewEscrowAuditor(asks storage.AskStore, ldg ledger.Ledger, interval time.Duration, log *logger.Logger) *EscrowAuditor {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.NewDefault("escrow-auditor")
	}
	return &EscrowAuditor{
		asks:     asks,
		ledger:   ldg,
		interval: interval,
		log:      log,
	}
}

// Name implements system.Service.
func (a *EscrowAuditor) Name() string { return "escrow-auditor" }

// Start launches the audit loop.
func (a *EscrowAuditor) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				a.Sweep(runCtx)
			}
		}
	}()

	return nil
}

// Stop halts the audit loop.
func (a *EscrowAuditor) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	cancel := a.cancel
	a.running = false
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Sweep runs one audit pass and returns the number of violations found.
func (a *EscrowAuditor) Sweep(ctx context.Context) int {
	asks, err := a.asks.ListAsks(ctx)
	if err != nil {
		a.log.WithError(err).Warn("escrow audit: listing asks failed")
		return 0
	}

	violations := 0
	var totalEscrow uint64
	for _, rec := range asks {
		totalEscrow += rec.Escrow

		if rec.Escrow != rec.AskPrice {
			violations++
			metrics.RecordEscrowViolation()
			a.log.WithField("asset_id", rec.AssetID).
				WithField("escrow", rec.Escrow).
				WithField("ask_price", rec.AskPrice).
				Error("escrow audit: escrow does not match ask price")
			continue
		}

		account := ledger.DeriveAccount("ask", rec.AssetID)
		balance, balErr := a.ledger.Balance(ctx, account)
		if balErr != nil {
			a.log.WithError(balErr).WithField("asset_id", rec.AssetID).Warn("escrow audit: balance lookup failed")
			continue
		}
		if balance != rec.Escrow {
			violations++
			metrics.RecordEscrowViolation()
			a.log.WithField("asset_id", rec.AssetID).
				WithField("escrow", rec.Escrow).
				WithField("ledger_balance", balance).
				Error("escrow audit: ledger balance does not match recorded escrow")
		}
	}

	metrics.SetOpenEscrow(totalEscrow)
	return violations
}
