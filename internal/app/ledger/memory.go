package ledger

import (
	"context"
	"sync"

	"github.com/Meridian-Network/marketplace_layer/internal/errors"
)

// MemoryLedger is an in-process ledger. It is safe for concurrent use and is
// the settlement backend for tests and local development.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]uint64)}
}

// Credit adds funds to an account. Used to fund test and dev accounts.
func (l *MemoryLedger) Credit(account string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// Balance returns the current balance of an account.
func (l *MemoryLedger) Balance(_ context.Context, account string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

// Transfer moves amount from one account to another.
func (l *MemoryLedger) Transfer(_ context.Context, from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applyLocked([]Transfer{{From: from, To: to, Amount: amount}})
}

// TransferBatch applies all transfers or none. Balances are staged on a copy
// so a failing transfer mid-batch leaves the ledger untouched.
func (l *MemoryLedger) TransferBatch(_ context.Context, transfers []Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applyLocked(transfers)
}

func (l *MemoryLedger) applyLocked(transfers []Transfer) error {
	staged := make(map[string]uint64, len(transfers)*2)
	for _, t := range transfers {
		if _, ok := staged[t.From]; !ok {
			staged[t.From] = l.balances[t.From]
		}
		if _, ok := staged[t.To]; !ok {
			staged[t.To] = l.balances[t.To]
		}
		if staged[t.From] < t.Amount {
			return errors.ErrInsufficientFunds
		}
		staged[t.From] -= t.Amount
		staged[t.To] += t.Amount
	}

	for account, balance := range staged {
		l.balances[account] = balance
	}
	return nil
}
