// Package ledger defines the settlement primitive the marketplace depends
// on: exact value transfer between two balances, with no fee skimmed and a
// hard failure when the source balance is short.
package ledger

import (
	"context"
	"strings"

	"github.com/Meridian-Network/marketplace_layer/internal/errors"
)

// Transfer is a single settlement instruction.
type Transfer struct {
	From   string
	To     string
	Amount uint64
}

// Ledger settles value transfers. TransferBatch is all-or-nothing: either
// every transfer in the batch commits or none do.
type Ledger interface {
	Balance(ctx context.Context, account string) (uint64, error)
	Transfer(ctx context.Context, from, to string, amount uint64) error
	TransferBatch(ctx context.Context, transfers []Transfer) error
}

// ErrInsufficientFunds is returned when the source account cannot cover the
// requested amount. Transfers never silently truncate.
var ErrInsufficientFunds = errors.ErrInsufficientFunds

// DeriveAccount returns the canonical ledger account for a seed namespace
// and discriminator key, guaranteeing one storage slot per logical key.
// Examples: DeriveAccount("ask", assetID), DeriveAccount("custody").
func DeriveAccount(namespace string, parts ...string) string {
	if len(parts) == 0 {
		return namespace
	}
	return namespace + ":" + strings.Join(parts, ":")
}
