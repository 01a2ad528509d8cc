package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/Meridian-Network/marketplace_layer/internal/app"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/admin"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/ask"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/service"
	"github.com/Meridian-Network/marketplace_layer/internal/app/ledger"
	"github.com/Meridian-Network/marketplace_layer/internal/middleware"
)

type testServer struct {
	srv    *httptest.Server
	ledger *ledger.MemoryLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ldg := ledger.NewMemoryLedger()
	application, err := app.New(app.Stores{}, app.Options{Ledger: ldg}, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}

	// Empty secret selects X-Caller identities, as in local development.
	auth := middleware.NewAuthMiddleware("", nil, []string{"/health", "/metrics"})
	srv := httptest.NewServer(auth.Handler(NewHandler(application)))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, ledger: ldg}
}

func (ts *testServer) request(t *testing.T, method, path, caller string, body, target interface{}) int {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, ts.srv.URL+path, payload)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if target != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHandler_Health(t *testing.T) {
	ts := newTestServer(t)
	if code := ts.request(t, http.MethodGet, "/health", "", nil, nil); code != http.StatusOK {
		t.Fatalf("health status: %d", code)
	}
}

func TestHandler_AdminFlow(t *testing.T) {
	ts := newTestServer(t)

	var cfg admin.Config
	code := ts.request(t, http.MethodPost, "/v1/admin/initialize", "admin",
		map[string]uint16{"royalty_fee_basis_points": 500}, &cfg)
	if code != http.StatusCreated {
		t.Fatalf("initialize status: %d", code)
	}
	if cfg.Admin != "admin" || cfg.RoyaltyFeeBasisPoints != 500 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	// Double initialization conflicts.
	code = ts.request(t, http.MethodPost, "/v1/admin/initialize", "admin",
		map[string]uint16{"royalty_fee_basis_points": 100}, nil)
	if code != http.StatusConflict {
		t.Fatalf("second initialize status: %d", code)
	}

	// Non-admin cannot change the rate.
	code = ts.request(t, http.MethodPut, "/v1/admin/royalty", "intruder",
		map[string]uint16{"royalty_fee_basis_points": 9000}, nil)
	if code != http.StatusForbidden {
		t.Fatalf("unauthorized update status: %d", code)
	}

	code = ts.request(t, http.MethodPut, "/v1/admin/royalty", "admin",
		map[string]uint16{"royalty_fee_basis_points": 250}, &cfg)
	if code != http.StatusOK || cfg.RoyaltyFeeBasisPoints != 250 {
		t.Fatalf("update status %d config %+v", code, cfg)
	}
}

func TestHandler_MarketplaceFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.request(t, http.MethodPost, "/v1/admin/initialize", "admin",
		map[string]uint16{"royalty_fee_basis_points": 500}, nil)
	ts.ledger.Credit("bob", 1000)
	ts.ledger.Credit("carol", 800)

	var rec service.Record
	code := ts.request(t, http.MethodPost, "/v1/services", "alice", map[string]interface{}{
		"asset_id": "asset-1",
		"price":    1000,
		"agreements": []map[string]string{
			{"title": "sla", "details": "99.9% uptime"},
		},
	}, &rec)
	if code != http.StatusCreated {
		t.Fatalf("list status: %d", code)
	}
	if rec.OriginalVendor != "alice" || rec.CurrentVendor != "alice" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Anonymous mutation is rejected.
	if code := ts.request(t, http.MethodPost, "/v1/services/asset-1/buy", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous buy status: %d", code)
	}

	code = ts.request(t, http.MethodPost, "/v1/services/asset-1/buy", "bob", nil, &rec)
	if code != http.StatusOK || rec.CurrentVendor != "bob" {
		t.Fatalf("buy status %d record %+v", code, rec)
	}

	var askRec ask.Record
	code = ts.request(t, http.MethodPut, "/v1/services/asset-1/ask", "carol",
		map[string]uint64{"ask_price": 800}, &askRec)
	if code != http.StatusOK || askRec.Escrow != 800 {
		t.Fatalf("ask status %d record %+v", code, askRec)
	}

	code = ts.request(t, http.MethodPost, "/v1/services/asset-1/ask/accept", "bob",
		map[string]string{"original_vendor": "alice"}, &rec)
	if code != http.StatusOK || rec.CurrentVendor != "carol" {
		t.Fatalf("accept status %d record %+v", code, rec)
	}

	// 800 at 500 bps: 40 to the creator, 760 to the seller.
	var balance struct {
		Balance uint64 `json:"balance"`
	}
	if code := ts.request(t, http.MethodGet, "/v1/accounts/alice/balance", "", nil, &balance); code != http.StatusOK {
		t.Fatalf("balance status: %d", code)
	}
	if balance.Balance != 1040 {
		t.Fatalf("alice balance: %d", balance.Balance)
	}

	// The consumed ask is gone.
	if code := ts.request(t, http.MethodGet, "/v1/services/asset-1/ask", "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("consumed ask status: %d", code)
	}
}

func TestHandler_UnknownService(t *testing.T) {
	ts := newTestServer(t)
	ts.request(t, http.MethodPost, "/v1/admin/initialize", "admin",
		map[string]uint16{"royalty_fee_basis_points": 0}, nil)

	if code := ts.request(t, http.MethodGet, "/v1/services/missing", "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing service status: %d", code)
	}
	if code := ts.request(t, http.MethodPost, "/v1/services/missing/buy", "bob", nil, nil); code != http.StatusNotFound {
		t.Fatalf("buy missing status: %d", code)
	}
}

func TestHandler_RejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t)
	ts.request(t, http.MethodPost, "/v1/admin/initialize", "admin",
		map[string]uint16{"royalty_fee_basis_points": 0}, nil)

	code := ts.request(t, http.MethodPost, "/v1/services", "alice",
		map[string]interface{}{"asset_id": "a", "price": 1, "bogus": true}, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("unknown field status: %d", code)
	}
}
