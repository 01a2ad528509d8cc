package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
)

const testPrivateKeyHex = "1dd37fba80fec4e6a6f13fd708d8dcb3b29def768017052f6c930fa1c5d90bbb"

func TestClient_InvokeFunctionWithSignerAndWait_Broadcasts(t *testing.T) {
	var sends atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "invokefunction":
			if len(req.Params) != 4 {
				t.Errorf("test invocation missing signers, got %d params", len(req.Params))
			}
			resp["result"] = map[string]interface{}{
				"script":      base64.StdEncoding.EncodeToString([]byte{0x10, 0x11}),
				"state":       "HALT",
				"gasconsumed": "997775",
				"stack":       []interface{}{},
			}
		case "getblockcount":
			resp["result"] = 4242
		case "calculatenetworkfee":
			resp["result"] = map[string]interface{}{"networkfee": "1230450"}
		case "sendrawtransaction":
			sends.Add(1)
			resp["result"] = map[string]interface{}{"hash": "0xfeedface"}
		default:
			t.Errorf("unexpected rpc method: %s", req.Method)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RPCURL: srv.URL, NetworkID: 894710606})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	wlt, err := NewWallet(testPrivateKeyHex)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	result, err := client.InvokeFunctionWithSignerAndWait(context.Background(), "hash", "settleBatch",
		[]ContractParam{NewIntegerParam(100)}, wlt.Account(), transaction.CalledByEntry, false)
	if err != nil {
		t.Fatalf("invoke with signer: %v", err)
	}
	if result.TxHash != "0xfeedface" {
		t.Fatalf("unexpected tx hash: %s", result.TxHash)
	}
	if got := sends.Load(); got != 1 {
		t.Fatalf("expected 1 broadcast, got %d", got)
	}
}

func TestClient_InvokeFunctionWithSignerAndWait_FaultStopsBroadcast(t *testing.T) {
	var sends atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "invokefunction":
			resp["result"] = map[string]interface{}{
				"state":     "FAULT",
				"exception": "unauthorized operator",
			}
		case "sendrawtransaction":
			sends.Add(1)
			resp["result"] = map[string]interface{}{"hash": "0xfeedface"}
		default:
			resp["result"] = 0
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RPCURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	wlt, err := NewWallet(testPrivateKeyHex)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	_, err = client.InvokeFunctionWithSignerAndWait(context.Background(), "hash", "settleBatch",
		nil, wlt.Account(), transaction.CalledByEntry, false)
	var invErr *InvokeError
	if !stderrors.As(err, &invErr) || invErr.Exception != "unauthorized operator" {
		t.Fatalf("expected invoke error, got %v", err)
	}
	if got := sends.Load(); got != 0 {
		t.Fatalf("faulted invocation was broadcast %d times", got)
	}
}

func TestClient_WaitForApplicationLog_RetriesUnknownTx(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": 1}
		if polls.Add(1) == 1 {
			resp["error"] = map[string]interface{}{"code": -101, "message": "Unknown transaction"}
		} else {
			resp["result"] = map[string]interface{}{
				"txid": "0xfeedface",
				"executions": []map[string]interface{}{
					{"trigger": "Application", "vmstate": "HALT"},
				},
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RPCURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	log, err := client.WaitForApplicationLog(context.Background(), "0xfeedface", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait for application log: %v", err)
	}
	if len(log.Executions) != 1 || log.Executions[0].VMState != "HALT" {
		t.Fatalf("unexpected application log: %+v", log)
	}
	if polls.Load() < 2 {
		t.Fatal("unknown transaction was not retried")
	}
}
