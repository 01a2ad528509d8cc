// Package custody models the asset minting and custody collaborator. Listed
// service assets are minted directly into program-held custody and leave it
// only through an authorized withdraw.
package custody

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/service"
	"github.com/Meridian-Network/marketplace_layer/internal/errors"
)

// MaxMetadataSpace bounds the serialized metadata size of a minted asset.
const MaxMetadataSpace = 4096

// Metadata describes the asset produced at listing time.
type Metadata struct {
	Name       string
	Symbol     string
	URI        string
	Agreements []service.Agreement
}

// Authority is the capability handle authorizing transfers out of custody.
// It is derived deterministically from fixed seed material and never exposed
// to end users.
type Authority struct {
	handle string
}

// NewAuthority derives the program authority from seed material.
func NewAuthority(seeds ...string) Authority {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write([]byte(seed))
	}
	return Authority{handle: hex.EncodeToString(h.Sum(nil))}
}

// Custodian mints assets into custody and releases them to owners.
type Custodian interface {
	// Mint produces a uniquely-owned asset under program custody. Failures
	// abort the listing that requested the mint.
	Mint(ctx context.Context, assetID string, meta Metadata, soulbound bool) error
	// TransferAsset moves a custodied asset out to an owner, authorized by
	// the program authority handle.
	TransferAsset(ctx context.Context, assetID, toOwner string, auth Authority) error
	// Holder reports who currently holds the asset.
	Holder(ctx context.Context, assetID string) (string, error)
}

// CustodyHolder is the holder value reported while an asset sits in program
// custody.
const CustodyHolder = "custody"

type mintedAsset struct {
	holder    string
	soulbound bool
	meta      Metadata
}

// MemoryCustodian is the in-process custody backend.
type MemoryCustodian struct {
	mu        sync.RWMutex
	authority Authority
	assets    map[string]*mintedAsset
}

var _ Custodian = (*MemoryCustodian)(nil)

// NewMemoryCustodian creates a custodian trusting the given authority.
func NewMemoryCustodian(authority Authority) *MemoryCustodian {
	return &MemoryCustodian{
		authority: authority,
		assets:    make(map[string]*mintedAsset),
	}
}

func (c *MemoryCustodian) Mint(_ context.Context, assetID string, meta Metadata, soulbound bool) error {
	if meta.Name == "" || meta.URI == "" {
		return errors.ErrCannotInitializeMetadata
	}
	if metadataSpace(meta) > MaxMetadataSpace {
		return errors.ErrInvalidAssetSpace
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.assets[assetID]; exists {
		return errors.ErrAlreadyExists
	}
	c.assets[assetID] = &mintedAsset{
		holder:    CustodyHolder,
		soulbound: soulbound,
		meta:      meta,
	}
	return nil
}

func (c *MemoryCustodian) TransferAsset(_ context.Context, assetID, toOwner string, auth Authority) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	asset, ok := c.assets[assetID]
	if !ok {
		return errors.NotFound("asset", assetID)
	}
	if auth.handle != c.authority.handle {
		return errors.Unauthorized("invalid custody authority")
	}
	if asset.soulbound {
		return errors.ErrSoulboundNotTransferable
	}

	asset.holder = toOwner
	return nil
}

func (c *MemoryCustodian) Holder(_ context.Context, assetID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	asset, ok := c.assets[assetID]
	if !ok {
		return "", errors.NotFound("asset", assetID)
	}
	return asset.holder, nil
}

func metadataSpace(meta Metadata) int {
	space := len(meta.Name) + len(meta.Symbol) + len(meta.URI)
	for _, a := range meta.Agreements {
		space += len(a.Title) + len(a.Details)
	}
	return space
}
