// Package marketplace implements the two-sided services marketplace
// settlement engine: ownership transfer, royalty-splitting payment
// settlement, and resale offers with escrowed funds.
package marketplace

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Meridian-Network/marketplace_layer/internal/app/custody"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/admin"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/ask"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/service"
	"github.com/Meridian-Network/marketplace_layer/internal/app/events"
	"github.com/Meridian-Network/marketplace_layer/internal/app/ledger"
	"github.com/Meridian-Network/marketplace_layer/internal/app/metrics"
	"github.com/Meridian-Network/marketplace_layer/internal/app/storage"
	"github.com/Meridian-Network/marketplace_layer/internal/errors"
	"github.com/Meridian-Network/marketplace_layer/pkg/logger"
)

// metadataURI is the base metadata document attached to minted assets.
const metadataURI = "ipfs://marketplace-layer/service-metadata.json"

// Emitter publishes events after successful mutating operations.
type Emitter interface {
	Emit(event events.Event)
}

// Service is the marketplace settlement engine. Every mutating operation
// resolves the configuration and the relevant records, runs its
// authorization guards before any fund movement, settles through the ledger
// in one all-or-nothing batch, and only then commits record state.
type Service struct {
	configs   storage.ConfigStore
	services  storage.ServiceStore
	asks      storage.AskStore
	ledger    ledger.Ledger
	custodian custody.Custodian
	authority custody.Authority
	emitter   Emitter
	log       *logger.Logger

	// mu serializes mutating operations; two operations touching the same
	// record must not interleave between read and write.
	mu sync.Mutex
}

// New constructs the marketplace service.
func New(
	configs storage.ConfigStore,
	services storage.ServiceStore,
	asks storage.AskStore,
	ldg ledger.Ledger,
	custodian custody.Custodian,
	authority custody.Authority,
	emitter Emitter,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewDefault("marketplace")
	}
	return &Service{
		configs:   configs,
		services:  services,
		asks:      asks,
		ledger:    ldg,
		custodian: custodian,
		authority: authority,
		emitter:   emitter,
		log:       log,
	}
}

// =============================================================================
// Admin Control
// =============================================================================

// Initialize creates the singleton configuration record. A second call fails
// with AlreadyInitialized and leaves the stored royalty rate unchanged.
func (s *Service) Initialize(ctx context.Context, caller string, royaltyFeeBasisPoints uint16) (cfg admin.Config, err error) {
	defer func() { metrics.RecordOperation("initialize", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	caller = strings.TrimSpace(caller)
	if caller == "" {
		return admin.Config{}, errors.InvalidArgument("admin identity is required")
	}

	if existing, getErr := s.configs.GetConfig(ctx); getErr == nil && existing.Initialized {
		return admin.Config{}, errors.ErrAlreadyInitialized
	}

	cfg, err = s.configs.CreateConfig(ctx, admin.Config{
		Admin:                 caller,
		RoyaltyFeeBasisPoints: royaltyFeeBasisPoints,
		Initialized:           true,
	})
	if err != nil {
		if errors.ErrAlreadyExists.Is(err) {
			return admin.Config{}, errors.ErrAlreadyInitialized
		}
		return admin.Config{}, err
	}

	s.log.WithField("admin", caller).
		WithField("royalty_fee_basis_points", royaltyFeeBasisPoints).
		Info("marketplace initialized")
	s.emit(events.Event{
		Type:          events.TypeInitialized,
		Actor:         caller,
		RoyaltyFeeBps: royaltyFeeBasisPoints,
	})
	return cfg, nil
}

// UpdateRoyalty replaces the royalty rate. Only the administrator may call
// it. The new rate is not bounds-checked here; a rate above 10000 basis
// points surfaces later as an Overflow in the fee calculator.
func (s *Service) UpdateRoyalty(ctx context.Context, caller string, newRoyaltyFeeBasisPoints uint16) (cfg admin.Config, err error) {
	defer func() { metrics.RecordOperation("update_royalty", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err = s.configs.GetConfig(ctx)
	if err != nil {
		return admin.Config{}, err
	}
	if caller != cfg.Admin {
		return admin.Config{}, errors.ErrUnauthorized
	}

	cfg.RoyaltyFeeBasisPoints = newRoyaltyFeeBasisPoints
	cfg, err = s.configs.UpdateConfig(ctx, cfg)
	if err != nil {
		return admin.Config{}, err
	}

	s.log.WithField("royalty_fee_basis_points", newRoyaltyFeeBasisPoints).Info("royalty rate updated")
	s.emit(events.Event{
		Type:          events.TypeRoyaltyUpdated,
		Actor:         caller,
		RoyaltyFeeBps: newRoyaltyFeeBasisPoints,
	})
	return cfg, nil
}

// GetConfig returns the configuration record.
func (s *Service) GetConfig(ctx context.Context) (admin.Config, error) {
	return s.configs.GetConfig(ctx)
}

// =============================================================================
// Service Ownership Operations
// =============================================================================

// ListService creates a service record and mints its asset into program
// custody. The creator becomes both original and current vendor. A mint
// failure aborts the listing entirely.
func (s *Service) ListService(ctx context.Context, vendor, assetID string, soulbound bool, agreements []service.Agreement, price uint64) (rec service.Record, err error) {
	defer func() { metrics.RecordOperation("list_service", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	vendor = strings.TrimSpace(vendor)
	assetID = strings.TrimSpace(assetID)
	if vendor == "" || assetID == "" {
		return service.Record{}, errors.InvalidArgument("vendor and asset_id are required")
	}

	if _, err = s.configs.GetConfig(ctx); err != nil {
		return service.Record{}, err
	}
	if _, getErr := s.services.GetService(ctx, assetID); getErr == nil {
		return service.Record{}, errors.ErrAlreadyExists
	}

	meta := custody.Metadata{
		Name:       assetID,
		Symbol:     "SRV",
		URI:        metadataURI,
		Agreements: agreements,
	}
	if err = s.custodian.Mint(ctx, assetID, meta, soulbound); err != nil {
		return service.Record{}, err
	}

	rec, err = s.services.CreateService(ctx, service.Record{
		AssetID:        assetID,
		OriginalVendor: vendor,
		CurrentVendor:  vendor,
		Price:          price,
		Soulbound:      soulbound,
		Agreements:     agreements,
	})
	if err != nil {
		return service.Record{}, err
	}

	s.log.WithField("asset_id", assetID).
		WithField("vendor", vendor).
		WithField("price", price).
		Info("service listed")
	s.emit(events.Event{
		Type:           events.TypeServiceListed,
		Actor:          vendor,
		AssetID:        assetID,
		OriginalVendor: vendor,
		Price:          price,
	})
	return rec, nil
}

// BuyService settles a direct purchase at the listed price. When the current
// vendor is not the original vendor the price is split: royalty to the
// original vendor, remainder to the current vendor. Both transfers settle in
// one atomic batch before the ownership pointer moves to the buyer.
func (s *Service) BuyService(ctx context.Context, buyer, assetID string) (rec service.Record, err error) {
	defer func() { metrics.RecordOperation("buy_service", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	buyer = strings.TrimSpace(buyer)
	if buyer == "" {
		return service.Record{}, errors.InvalidArgument("buyer identity is required")
	}

	cfg, err := s.configs.GetConfig(ctx)
	if err != nil {
		return service.Record{}, err
	}
	rec, err = s.services.GetService(ctx, assetID)
	if err != nil {
		return service.Record{}, err
	}

	price := rec.Price
	var royaltyAmount uint64
	remainingAmount := price

	var transfers []ledger.Transfer
	if rec.CurrentVendor != rec.OriginalVendor {
		royaltyAmount, remainingAmount, err = SplitRoyalty(price, cfg.RoyaltyFeeBasisPoints)
		if err != nil {
			return service.Record{}, err
		}
		transfers = []ledger.Transfer{
			{From: buyer, To: rec.OriginalVendor, Amount: royaltyAmount},
			{From: buyer, To: rec.CurrentVendor, Amount: remainingAmount},
		}
	} else {
		transfers = []ledger.Transfer{
			{From: buyer, To: rec.CurrentVendor, Amount: price},
		}
	}

	if err = s.ledger.TransferBatch(ctx, transfers); err != nil {
		return service.Record{}, err
	}

	seller := rec.CurrentVendor
	rec.CurrentVendor = buyer
	rec, err = s.services.UpdateService(ctx, rec)
	if err != nil {
		return service.Record{}, err
	}

	metrics.RecordSettlement(price, royaltyAmount)
	s.log.WithField("asset_id", assetID).
		WithField("buyer", buyer).
		WithField("price", price).
		WithField("royalty_amount", royaltyAmount).
		Info("service bought")
	s.emit(events.Event{
		Type:            events.TypeServiceBought,
		Actor:           buyer,
		AssetID:         assetID,
		Counterparty:    seller,
		OriginalVendor:  rec.OriginalVendor,
		Price:           price,
		RoyaltyAmount:   royaltyAmount,
		RemainingAmount: remainingAmount,
	})
	return rec, nil
}

// RepriceService sets a new listing price. Only the current vendor may call
// it; no funds move.
func (s *Service) RepriceService(ctx context.Context, caller, assetID string, newPrice uint64) (rec service.Record, err error) {
	defer func() { metrics.RecordOperation("reprice_service", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err = s.services.GetService(ctx, assetID)
	if err != nil {
		return service.Record{}, err
	}
	if caller != rec.CurrentVendor {
		return service.Record{}, errors.ErrUnauthorized
	}

	oldPrice := rec.Price
	rec.Price = newPrice
	rec, err = s.services.UpdateService(ctx, rec)
	if err != nil {
		return service.Record{}, err
	}

	s.emit(events.Event{
		Type:     events.TypeServiceRepriced,
		Actor:    caller,
		AssetID:  assetID,
		OldPrice: oldPrice,
		NewPrice: newPrice,
	})
	return rec, nil
}

// WithdrawService releases the custodied asset to the current vendor.
// Soulbound assets are permanently non-transferable and stay in custody.
func (s *Service) WithdrawService(ctx context.Context, caller, assetID string) (err error) {
	defer func() { metrics.RecordOperation("withdraw_service", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.services.GetService(ctx, assetID)
	if err != nil {
		return err
	}
	if caller != rec.CurrentVendor {
		return errors.ErrUnauthorized
	}
	if rec.Soulbound {
		return errors.ErrSoulboundNotTransferable
	}

	if err = s.custodian.TransferAsset(ctx, assetID, caller, s.authority); err != nil {
		return err
	}

	s.log.WithField("asset_id", assetID).WithField("vendor", caller).Info("service asset withdrawn")
	s.emit(events.Event{
		Type:    events.TypeServiceWithdrawn,
		Actor:   caller,
		AssetID: assetID,
	})
	return nil
}

// GetService returns a service record.
func (s *Service) GetService(ctx context.Context, assetID string) (service.Record, error) {
	return s.services.GetService(ctx, assetID)
}

// ListServices returns all service records.
func (s *Service) ListServices(ctx context.Context) ([]service.Record, error) {
	return s.services.ListServices(ctx)
}

// =============================================================================
// Ask (Resale Offer) Operations
// =============================================================================

// CreateOrRepriceAsk opens a resale offer, escrowing the ask price from the
// offering party into the ask's ledger account. When an ask already exists
// for the asset this is a reprice, not a fresh creation: the escrow is
// adjusted by the price difference and only the original offering party may
// do it.
func (s *Service) CreateOrRepriceAsk(ctx context.Context, asker, assetID string, askPrice uint64) (rec ask.Record, err error) {
	defer func() { metrics.RecordOperation("create_or_reprice_ask", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	asker = strings.TrimSpace(asker)
	assetID = strings.TrimSpace(assetID)
	if asker == "" || assetID == "" {
		return ask.Record{}, errors.InvalidArgument("asker and asset_id are required")
	}
	if _, err = s.configs.GetConfig(ctx); err != nil {
		return ask.Record{}, err
	}

	existing, getErr := s.asks.GetAsk(ctx, assetID)
	if getErr == nil {
		rec, err = s.repriceAskLocked(ctx, existing, asker, askPrice)
		if err != nil {
			return ask.Record{}, err
		}
		return rec, nil
	}
	if !errors.ErrNotFound.Is(getErr) {
		return ask.Record{}, getErr
	}

	escrowAccount := ledger.DeriveAccount("ask", assetID)
	if err = s.ledger.Transfer(ctx, asker, escrowAccount, askPrice); err != nil {
		return ask.Record{}, err
	}

	rec, err = s.asks.CreateAsk(ctx, ask.Record{
		AssetID:  assetID,
		Asker:    asker,
		AskPrice: askPrice,
		Escrow:   askPrice,
	})
	if err != nil {
		return ask.Record{}, err
	}

	s.updateEscrowGauge(ctx)
	s.log.WithField("asset_id", assetID).
		WithField("asker", asker).
		WithField("ask_price", askPrice).
		Info("ask placed")
	s.emit(events.Event{
		Type:    events.TypeAskPlaced,
		Actor:   asker,
		AssetID: assetID,
		Price:   askPrice,
	})
	return rec, nil
}

// RepriceAsk adjusts an open offer. A raise tops up escrow by exactly the
// difference; a cut refunds it. Escrow equals the new price afterwards.
func (s *Service) RepriceAsk(ctx context.Context, caller, assetID string, newAskPrice uint64) (rec ask.Record, err error) {
	defer func() { metrics.RecordOperation("reprice_ask", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.asks.GetAsk(ctx, assetID)
	if err != nil {
		return ask.Record{}, err
	}
	return s.repriceAskLocked(ctx, existing, caller, newAskPrice)
}

func (s *Service) repriceAskLocked(ctx context.Context, rec ask.Record, caller string, newAskPrice uint64) (ask.Record, error) {
	if caller != rec.Asker {
		return ask.Record{}, errors.ErrUnauthorized
	}

	oldAskPrice := rec.AskPrice
	escrowAccount := ledger.DeriveAccount("ask", rec.AssetID)

	switch {
	case newAskPrice > oldAskPrice:
		additional, err := checkedSub(newAskPrice, oldAskPrice)
		if err != nil {
			return ask.Record{}, err
		}
		if err := s.ledger.Transfer(ctx, caller, escrowAccount, additional); err != nil {
			return ask.Record{}, err
		}
	case newAskPrice < oldAskPrice:
		refund, err := checkedSub(oldAskPrice, newAskPrice)
		if err != nil {
			return ask.Record{}, err
		}
		if err := s.ledger.Transfer(ctx, escrowAccount, caller, refund); err != nil {
			return ask.Record{}, err
		}
	}

	rec.AskPrice = newAskPrice
	rec.Escrow = newAskPrice
	rec, err := s.asks.UpdateAsk(ctx, rec)
	if err != nil {
		return ask.Record{}, err
	}

	s.updateEscrowGauge(ctx)
	s.emit(events.Event{
		Type:     events.TypeAskRepriced,
		Actor:    caller,
		AssetID:  rec.AssetID,
		OldPrice: oldAskPrice,
		NewPrice: newAskPrice,
	})
	return rec, nil
}

// AcceptAsk lets the current vendor accept the open offer on their asset.
// The escrowed ask price is disbursed in full, split with the original
// vendor when the seller is not the creator, and ownership moves to the
// offering party. The escrow account holds zero afterwards.
func (s *Service) AcceptAsk(ctx context.Context, caller, assetID, originalVendor string) (rec service.Record, err error) {
	defer func() { metrics.RecordOperation("accept_ask", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.configs.GetConfig(ctx)
	if err != nil {
		return service.Record{}, err
	}
	rec, err = s.services.GetService(ctx, assetID)
	if err != nil {
		return service.Record{}, err
	}
	askRec, err := s.asks.GetAsk(ctx, assetID)
	if err != nil {
		return service.Record{}, err
	}

	// Guards run strictly before any fund movement.
	if rec.CurrentVendor != caller {
		return service.Record{}, errors.ErrOwnerMismatch
	}
	if rec.OriginalVendor != originalVendor {
		return service.Record{}, errors.ErrOriginalVendorMismatch
	}
	if rec.AssetID != askRec.AssetID {
		return service.Record{}, errors.ErrAssetMismatch
	}
	if askRec.Escrow != askRec.AskPrice {
		return service.Record{}, fmt.Errorf("ask %s escrow %d does not match price %d", assetID, askRec.Escrow, askRec.AskPrice)
	}

	askPrice := askRec.AskPrice
	escrowAccount := ledger.DeriveAccount("ask", assetID)

	var royaltyAmount uint64
	remainingAmount := askPrice

	var transfers []ledger.Transfer
	if caller != rec.OriginalVendor {
		royaltyAmount, remainingAmount, err = SplitRoyalty(askPrice, cfg.RoyaltyFeeBasisPoints)
		if err != nil {
			return service.Record{}, err
		}
		transfers = []ledger.Transfer{
			{From: escrowAccount, To: rec.OriginalVendor, Amount: royaltyAmount},
			{From: escrowAccount, To: caller, Amount: remainingAmount},
		}
	} else {
		transfers = []ledger.Transfer{
			{From: escrowAccount, To: caller, Amount: askPrice},
		}
	}

	if err = s.ledger.TransferBatch(ctx, transfers); err != nil {
		return service.Record{}, err
	}

	if balance, balErr := s.ledger.Balance(ctx, escrowAccount); balErr == nil && balance != 0 {
		return service.Record{}, fmt.Errorf("ask %s escrow not fully disbursed: %d remaining", assetID, balance)
	}

	rec.CurrentVendor = askRec.Asker
	rec, err = s.services.UpdateService(ctx, rec)
	if err != nil {
		return service.Record{}, err
	}
	if err = s.asks.DeleteAsk(ctx, assetID); err != nil {
		return service.Record{}, err
	}

	metrics.RecordSettlement(askPrice, royaltyAmount)
	s.updateEscrowGauge(ctx)
	s.log.WithField("asset_id", assetID).
		WithField("seller", caller).
		WithField("asker", askRec.Asker).
		WithField("ask_price", askPrice).
		WithField("royalty_amount", royaltyAmount).
		Info("ask accepted")
	s.emit(events.Event{
		Type:            events.TypeAskAccepted,
		Actor:           caller,
		AssetID:         assetID,
		Counterparty:    askRec.Asker,
		OriginalVendor:  rec.OriginalVendor,
		Price:           askPrice,
		RoyaltyAmount:   royaltyAmount,
		RemainingAmount: remainingAmount,
	})
	return rec, nil
}

// GetAsk returns the open ask for an asset.
func (s *Service) GetAsk(ctx context.Context, assetID string) (ask.Record, error) {
	return s.asks.GetAsk(ctx, assetID)
}

// ListAsks returns all open asks.
func (s *Service) ListAsks(ctx context.Context) ([]ask.Record, error) {
	return s.asks.ListAsks(ctx)
}

func (s *Service) emit(event events.Event) {
	if s.emitter != nil {
		s.emitter.Emit(event)
	}
}

func (s *Service) updateEscrowGauge(ctx context.Context) {
	asks, err := s.asks.ListAsks(ctx)
	if err != nil {
		return
	}
	var total uint64
	for _, rec := range asks {
		total += rec.Escrow
	}
	metrics.SetOpenEscrow(total)
}
