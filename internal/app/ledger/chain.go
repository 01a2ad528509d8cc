package ledger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"

	"github.com/Meridian-Network/marketplace_layer/internal/chain"
	"github.com/Meridian-Network/marketplace_layer/pkg/logger"
)

// ChainLedger settles transfers in GAS on Neo N3 through the settlement
// contract. Batch atomicity is provided by submitting all transfers inside
// one contract invocation, relying on the chain's all-or-nothing transaction
// semantics.
type ChainLedger struct {
	client       *chain.Client
	wallet       *chain.Wallet
	gasTokenHash string
	contractHash string
	log          *logger.Logger
}

var _ Ledger = (*ChainLedger)(nil)

// NewChainLedger creates a chain-backed ledger.
func NewChainLedger(client *chain.Client, wallet *chain.Wallet, gasTokenHash, contractHash string, log *logger.Logger) *ChainLedger {
	if log == nil {
		log = logger.NewDefault("chain-ledger")
	}
	return &ChainLedger{
		client:       client,
		wallet:       wallet,
		gasTokenHash: gasTokenHash,
		contractHash: contractHash,
		log:          log,
	}
}

// Balance queries the GAS balance of an account script hash.
func (l *ChainLedger) Balance(ctx context.Context, account string) (uint64, error) {
	result, err := l.client.InvokeFunction(ctx, l.gasTokenHash, "balanceOf",
		[]chain.ContractParam{chain.NewHash160Param(account)})
	if err != nil {
		return 0, fmt.Errorf("balanceOf: %w", err)
	}
	if result.State != "HALT" {
		return 0, fmt.Errorf("balanceOf faulted: %s", result.Exception)
	}
	return parseIntegerStack(result.Stack)
}

// Transfer settles a single transfer through the settlement contract.
func (l *ChainLedger) Transfer(ctx context.Context, from, to string, amount uint64) error {
	return l.TransferBatch(ctx, []Transfer{{From: from, To: to, Amount: amount}})
}

// TransferBatch submits all transfers in one signed contract transaction.
// The invocation is test-executed first to surface faults without spending
// gas, then broadcast and confirmed through the application log; success is
// only reported once the chain has executed the batch with HALT.
func (l *ChainLedger) TransferBatch(ctx context.Context, transfers []Transfer) error {
	params := make([]chain.ContractParam, 0, len(transfers)*3+1)
	message := make([]byte, 0, len(transfers)*48)
	for _, t := range transfers {
		params = append(params,
			chain.NewHash160Param(t.From),
			chain.NewHash160Param(t.To),
			chain.NewIntegerParam(t.Amount),
		)
		message = append(message, []byte(t.From)...)
		message = append(message, []byte(t.To)...)
		message = strconv.AppendUint(message, t.Amount, 10)
	}

	// The settlement contract verifies the operator signature over the batch.
	params = append(params, chain.NewByteArrayParam(l.wallet.Sign(message)))

	result, err := l.client.InvokeFunctionWithSignerAndWait(ctx, l.contractHash, "settleBatch", params,
		l.wallet.Account(), transaction.CalledByEntry, true)
	if err != nil {
		var invErr *chain.InvokeError
		if stderrors.As(err, &invErr) && strings.Contains(invErr.Exception, "insufficient") {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("settleBatch: %w", err)
	}
	if result.VMState != "HALT" {
		if strings.Contains(result.Exception, "insufficient") {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("settleBatch faulted on chain: %s", result.Exception)
	}

	l.log.WithFields(map[string]interface{}{
		"transfers": len(transfers),
		"tx":        result.TxHash,
	}).Debug("settlement batch committed")
	return nil
}

// parseIntegerStack extracts a single integer item from an invocation stack.
func parseIntegerStack(raw json.RawMessage) (uint64, error) {
	var stack []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &stack); err != nil {
		return 0, fmt.Errorf("unmarshal stack: %w", err)
	}
	if len(stack) == 0 {
		return 0, fmt.Errorf("empty invocation stack")
	}
	value, err := strconv.ParseUint(stack[0].Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse stack integer: %w", err)
	}
	return value, nil
}
