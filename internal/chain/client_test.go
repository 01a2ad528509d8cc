package chain

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_InvokeFunction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode rpc request: %v", err)
		}
		if req.Method != "invokefunction" {
			t.Fatalf("unexpected method: %s", req.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"state":       "HALT",
				"gasconsumed": "100",
				"stack":       []map[string]string{{"type": "Integer", "value": "42"}},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{RPCURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.InvokeFunction(context.Background(), "hash", "balanceOf",
		[]ContractParam{NewHash160Param("account")})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.State != "HALT" {
		t.Fatalf("unexpected state: %s", result.State)
	}
}

func TestClient_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]interface{}{"code": -32601, "message": "method not found"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{RPCURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Call(context.Background(), "bogus", nil)
	var rpcErr *RPCError
	if !stderrors.As(err, &rpcErr) || rpcErr.Code != -32601 {
		t.Fatalf("expected rpc error, got %v", err)
	}
}

func TestNewClient_RequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("empty RPC URL accepted")
	}
}
