package client

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_GetService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/services/asset-1", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"asset_id":"asset-1","original_vendor":"alice","current_vendor":"bob","price":800}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "token-1"})
	rec, err := c.GetService(context.Background(), "asset-1")
	require.NoError(t, err)
	require.Equal(t, ServiceRecord{AssetID: "asset-1", OriginalVendor: "alice", CurrentVendor: "bob", Price: 800}, rec)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"UNAUTHORIZED: you are not authorized to perform this action"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.BuyService(context.Background(), "asset-1")
	var apiErr *APIError
	require.True(t, stderrors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balance":42}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 2})
	balance, err := c.Balance(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(42), balance)
	require.Equal(t, int32(2), calls.Load())
}

func TestClient_TokenFunc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer rotated", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"admin":"a","royalty_fee_basis_points":500,"initialized":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, TokenFunc: func() (string, error) { return "rotated", nil }})
	cfg, err := c.GetConfig(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint16(500), cfg.RoyaltyFeeBasisPoints)
}
