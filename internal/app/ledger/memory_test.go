package ledger

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/Meridian-Network/marketplace_layer/internal/errors"
)

func TestMemoryLedger_Transfer(t *testing.T) {
	ldg := NewMemoryLedger()
	ldg.Credit("a", 100)

	if err := ldg.Transfer(context.Background(), "a", "b", 60); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal, _ := ldg.Balance(context.Background(), "a"); bal != 40 {
		t.Fatalf("a balance: %d", bal)
	}
	if bal, _ := ldg.Balance(context.Background(), "b"); bal != 60 {
		t.Fatalf("b balance: %d", bal)
	}

	if err := ldg.Transfer(context.Background(), "a", "b", 41); !stderrors.Is(err, errors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestMemoryLedger_BatchAtomicity(t *testing.T) {
	ldg := NewMemoryLedger()
	ldg.Credit("buyer", 100)

	// Second transfer cannot be covered, so the first must not commit either.
	err := ldg.TransferBatch(context.Background(), []Transfer{
		{From: "buyer", To: "vendor", Amount: 80},
		{From: "buyer", To: "creator", Amount: 30},
	})
	if !stderrors.Is(err, errors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if bal, _ := ldg.Balance(context.Background(), "buyer"); bal != 100 {
		t.Fatalf("failed batch debited buyer: %d", bal)
	}
	if bal, _ := ldg.Balance(context.Background(), "vendor"); bal != 0 {
		t.Fatalf("failed batch credited vendor: %d", bal)
	}
}

func TestMemoryLedger_BatchChainedFunds(t *testing.T) {
	ldg := NewMemoryLedger()
	ldg.Credit("escrow", 100)

	// Funds received earlier in the batch are spendable later in it.
	err := ldg.TransferBatch(context.Background(), []Transfer{
		{From: "escrow", To: "seller", Amount: 100},
		{From: "seller", To: "creator", Amount: 5},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if bal, _ := ldg.Balance(context.Background(), "seller"); bal != 95 {
		t.Fatalf("seller balance: %d", bal)
	}
}

func TestDeriveAccount(t *testing.T) {
	if got := DeriveAccount("ask", "asset-1"); got != "ask:asset-1" {
		t.Fatalf("unexpected account: %s", got)
	}
	if got := DeriveAccount("custody"); got != "custody" {
		t.Fatalf("unexpected account: %s", got)
	}
	if DeriveAccount("ask", "a") == DeriveAccount("ask", "b") {
		t.Fatal("distinct keys must derive distinct accounts")
	}
}
