package custody

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/Meridian-Network/marketplace_layer/internal/errors"
)

func TestMemoryCustodian_MintAndTransfer(t *testing.T) {
	authority := NewAuthority("test", "authority")
	c := NewMemoryCustodian(authority)
	ctx := context.Background()

	meta := Metadata{Name: "asset-1", Symbol: "SRV", URI: "ipfs://meta"}
	if err := c.Mint(ctx, "asset-1", meta, false); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if holder, _ := c.Holder(ctx, "asset-1"); holder != CustodyHolder {
		t.Fatalf("minted asset not in custody: %s", holder)
	}

	if err := c.Mint(ctx, "asset-1", meta, false); !stderrors.Is(err, errors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}

	if err := c.TransferAsset(ctx, "asset-1", "alice", NewAuthority("wrong")); !stderrors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := c.TransferAsset(ctx, "asset-1", "alice", authority); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if holder, _ := c.Holder(ctx, "asset-1"); holder != "alice" {
		t.Fatalf("holder not updated: %s", holder)
	}
}

func TestMemoryCustodian_MetadataValidation(t *testing.T) {
	c := NewMemoryCustodian(NewAuthority("test"))
	ctx := context.Background()

	if err := c.Mint(ctx, "a", Metadata{Symbol: "SRV", URI: "u"}, false); !stderrors.Is(err, errors.ErrCannotInitializeMetadata) {
		t.Fatalf("empty name accepted: %v", err)
	}
	if err := c.Mint(ctx, "a", Metadata{Name: "n", Symbol: "SRV"}, false); !stderrors.Is(err, errors.ErrCannotInitializeMetadata) {
		t.Fatalf("empty uri accepted: %v", err)
	}

	oversize := Metadata{Name: "n", URI: strings.Repeat("x", MaxMetadataSpace+1)}
	if err := c.Mint(ctx, "a", oversize, false); !stderrors.Is(err, errors.ErrInvalidAssetSpace) {
		t.Fatalf("oversize metadata accepted: %v", err)
	}
}

func TestMemoryCustodian_Soulbound(t *testing.T) {
	authority := NewAuthority("test")
	c := NewMemoryCustodian(authority)
	ctx := context.Background()

	if err := c.Mint(ctx, "sb", Metadata{Name: "sb", URI: "u"}, true); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := c.TransferAsset(ctx, "sb", "alice", authority); !stderrors.Is(err, errors.ErrSoulboundNotTransferable) {
		t.Fatalf("soulbound asset transferred: %v", err)
	}
	if holder, _ := c.Holder(ctx, "sb"); holder != CustodyHolder {
		t.Fatalf("soulbound asset left custody: %s", holder)
	}
}

func TestNewAuthority_Deterministic(t *testing.T) {
	a := NewAuthority("seed", "material")
	b := NewAuthority("seed", "material")
	if a != b {
		t.Fatal("same seeds must derive the same authority")
	}
	if a == NewAuthority("other") {
		t.Fatal("different seeds must derive different authorities")
	}
}
