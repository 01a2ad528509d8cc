package chain

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/config/netmode"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
)

// DefaultTxWaitTimeout bounds the wait for a broadcast transaction to be
// executed on chain.
const DefaultTxWaitTimeout = 2 * time.Minute

// DefaultPollInterval is the interval between application log polls.
const DefaultPollInterval = 2 * time.Second

// validUntilBlockIncrement is how many blocks past the current height a
// built transaction stays valid for inclusion.
const validUntilBlockIncrement = 240

// Signer scopes the witness of an invocation to an account.
type Signer struct {
	Account string `json:"account"`
	Scopes  string `json:"scopes"`
}

// Execution is one VM execution from a transaction application log.
type Execution struct {
	Trigger     string          `json:"trigger"`
	VMState     string          `json:"vmstate"`
	GasConsumed string          `json:"gasconsumed"`
	Exception   string          `json:"exception"`
	Stack       json.RawMessage `json:"stack"`
}

// ApplicationLog is the on-chain execution record of a transaction.
type ApplicationLog struct {
	TxID       string      `json:"txid"`
	Executions []Execution `json:"executions"`
}

// TxResult reports a broadcast transaction and its final VM state. VMState
// reflects the application log execution once the transaction is confirmed.
type TxResult struct {
	TxHash    string
	VMState   string
	Exception string
	AppLog    *ApplicationLog
}

// InvokeError is a test invocation that did not HALT.
type InvokeError struct {
	Method    string
	State     string
	Exception string
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.State, e.Exception)
}

// InvokeFunctionWithSigner test-executes a contract function with witness
// signers attached, so CheckWitness guards behave as they will on chain.
func (c *Client) InvokeFunctionWithSigner(ctx context.Context, scriptHash, method string, params []ContractParam, signers []Signer) (*InvokeResult, error) {
	args := []interface{}{scriptHash, method, params}
	if len(signers) > 0 {
		args = append(args, signers)
	}

	result, err := c.Call(ctx, "invokefunction", args)
	if err != nil {
		return nil, err
	}

	var invokeResult InvokeResult
	if err := json.Unmarshal(result, &invokeResult); err != nil {
		return nil, err
	}
	return &invokeResult, nil
}

// CalculateNetworkFee asks the node to price the witnesses of a serialized
// transaction.
func (c *Client) CalculateNetworkFee(ctx context.Context, txBase64 string) (int64, error) {
	result, err := c.Call(ctx, "calculatenetworkfee", []interface{}{txBase64})
	if err != nil {
		return 0, err
	}

	var response struct {
		NetworkFee string `json:"networkfee"`
	}
	if err := json.Unmarshal(result, &response); err != nil {
		return 0, err
	}
	return strconv.ParseInt(response.NetworkFee, 10, 64)
}

// GetApplicationLog returns the application log for a transaction.
func (c *Client) GetApplicationLog(ctx context.Context, txHash string) (*ApplicationLog, error) {
	result, err := c.Call(ctx, "getapplicationlog", []interface{}{txHash})
	if err != nil {
		return nil, err
	}

	var log ApplicationLog
	if err := json.Unmarshal(result, &log); err != nil {
		return nil, err
	}
	return &log, nil
}

// isNotFoundError reports whether an RPC error means the node does not know
// the transaction yet.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown transaction") || strings.Contains(msg, "not found")
}

// WaitForApplicationLog polls for a transaction application log until it is
// available or the context is done. A missing transaction is transient and
// retried until the context deadline expires.
func (c *Client) WaitForApplicationLog(ctx context.Context, txHash string, pollInterval time.Duration) (*ApplicationLog, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			log, err := c.GetApplicationLog(ctx, txHash)
			if err != nil {
				if isNotFoundError(err) {
					continue
				}
				return nil, err
			}
			return log, nil
		}
	}
}

// InvokeFunctionWithSignerAndWait performs a state-changing contract call.
// The invocation is first test-executed to obtain the script and system fee
// and to surface faults before any gas is spent; it is then assembled into a
// transaction, signed by the account, and broadcast. With wait set, the call
// blocks until the application log is available and VMState reflects the
// actual on-chain execution; otherwise only TxHash is populated and VMState
// carries the test-execution state.
func (c *Client) InvokeFunctionWithSignerAndWait(ctx context.Context, contractHash, method string, params []ContractParam, acc *wallet.Account, scope transaction.WitnessScope, wait bool) (*TxResult, error) {
	signer := Signer{Account: "0x" + acc.ScriptHash().StringLE(), Scopes: scope.String()}
	invokeResult, err := c.InvokeFunctionWithSigner(ctx, contractHash, method, params, []Signer{signer})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}
	if invokeResult.State != "HALT" {
		return nil, &InvokeError{Method: method, State: invokeResult.State, Exception: invokeResult.Exception}
	}

	script, err := base64.StdEncoding.DecodeString(invokeResult.Script)
	if err != nil {
		return nil, fmt.Errorf("decode %s script: %w", method, err)
	}
	systemFee, err := strconv.ParseInt(invokeResult.GasConsumed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s gas consumed: %w", method, err)
	}
	height, err := c.GetBlockCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("get block count: %w", err)
	}

	tx := transaction.New(script, systemFee)
	var nonce [4]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	tx.Nonce = binary.LittleEndian.Uint32(nonce[:])
	tx.ValidUntilBlock = uint32(height) + validUntilBlockIncrement
	tx.Signers = []transaction.Signer{{Account: acc.ScriptHash(), Scopes: scope}}

	// A placeholder witness so the node prices the verification cost; the
	// real witness replaces it after the fee is fixed.
	tx.Scripts = []transaction.Witness{{InvocationScript: make([]byte, 66), VerificationScript: acc.Contract.Script}}
	unsigned := tx.Bytes()
	networkFee, err := c.CalculateNetworkFee(ctx, base64.StdEncoding.EncodeToString(unsigned))
	if err != nil {
		return nil, fmt.Errorf("calculate network fee: %w", err)
	}
	tx.NetworkFee = networkFee
	tx.Scripts = nil

	if err := acc.SignTx(netmode.Magic(c.NetworkID()), tx); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	raw := tx.Bytes()

	txHash, err := c.SendRawTransaction(ctx, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		return nil, fmt.Errorf("broadcast %s: %w", method, err)
	}

	result := &TxResult{TxHash: txHash, VMState: invokeResult.State}
	if !wait {
		return result, nil
	}

	wctx, cancel := context.WithTimeout(ctx, DefaultTxWaitTimeout)
	defer cancel()

	appLog, err := c.WaitForApplicationLog(wctx, txHash, DefaultPollInterval)
	if err != nil {
		return result, fmt.Errorf("wait for %s execution: %w", method, err)
	}
	result.AppLog = appLog
	if len(appLog.Executions) > 0 {
		result.VMState = appLog.Executions[0].VMState
		result.Exception = appLog.Executions[0].Exception
	}
	return result, nil
}
