// Package httpapi exposes the marketplace over REST. Handlers are thin:
// they decode the request, resolve the caller identity, delegate to the
// marketplace service, and translate taxonomy errors to HTTP statuses.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/Meridian-Network/marketplace_layer/internal/app"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/service"
	"github.com/Meridian-Network/marketplace_layer/internal/app/metrics"
	apperrors "github.com/Meridian-Network/marketplace_layer/internal/errors"
	"github.com/Meridian-Network/marketplace_layer/internal/httputil"
	"github.com/Meridian-Network/marketplace_layer/internal/middleware"
)

// handler bundles HTTP endpoints for the marketplace service.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the marketplace REST API.
func NewHandler(application *app.Application) *mux.Router {
	h := &handler{app: application}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/admin/initialize", h.initialize).Methods(http.MethodPost)
	v1.HandleFunc("/admin/royalty", h.updateRoyalty).Methods(http.MethodPut)
	v1.HandleFunc("/admin/config", h.getConfig).Methods(http.MethodGet)

	v1.HandleFunc("/services", h.listService).Methods(http.MethodPost)
	v1.HandleFunc("/services", h.listServices).Methods(http.MethodGet)
	v1.HandleFunc("/services/{assetID}", h.getService).Methods(http.MethodGet)
	v1.HandleFunc("/services/{assetID}/buy", h.buyService).Methods(http.MethodPost)
	v1.HandleFunc("/services/{assetID}/price", h.repriceService).Methods(http.MethodPut)
	v1.HandleFunc("/services/{assetID}/withdraw", h.withdrawService).Methods(http.MethodPost)

	v1.HandleFunc("/services/{assetID}/ask", h.placeAsk).Methods(http.MethodPut)
	v1.HandleFunc("/services/{assetID}/ask", h.getAsk).Methods(http.MethodGet)
	v1.HandleFunc("/services/{assetID}/ask/accept", h.acceptAsk).Methods(http.MethodPost)
	v1.HandleFunc("/asks", h.listAsks).Methods(http.MethodGet)

	v1.HandleFunc("/accounts/{account}/balance", h.balance).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// Admin
// =============================================================================

func (h *handler) initialize(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		RoyaltyFeeBasisPoints uint16 `json:"royalty_fee_basis_points"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	cfg, err := h.app.Marketplace.Initialize(r.Context(), caller, req.RoyaltyFeeBasisPoints)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cfg)
}

func (h *handler) updateRoyalty(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		RoyaltyFeeBasisPoints uint16 `json:"royalty_fee_basis_points"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	cfg, err := h.app.Marketplace.UpdateRoyalty(r.Context(), caller, req.RoyaltyFeeBasisPoints)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (h *handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.app.Marketplace.GetConfig(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

// =============================================================================
// Services
// =============================================================================

type agreementRequest struct {
	Title   string `json:"title"`
	Details string `json:"details"`
}

func (h *handler) listService(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		AssetID    string             `json:"asset_id"`
		Price      uint64             `json:"price"`
		Soulbound  bool               `json:"soulbound"`
		Agreements []agreementRequest `json:"agreements"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	agreements := make([]service.Agreement, 0, len(req.Agreements))
	for _, a := range req.Agreements {
		agreements = append(agreements, service.Agreement{Title: a.Title, Details: a.Details})
	}

	rec, err := h.app.Marketplace.ListService(r.Context(), caller, req.AssetID, req.Soulbound, agreements, req.Price)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func (h *handler) listServices(w http.ResponseWriter, r *http.Request) {
	recs, err := h.app.Marketplace.ListServices(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recs)
}

func (h *handler) getService(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Marketplace.GetService(r.Context(), mux.Vars(r)["assetID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) buyService(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	rec, err := h.app.Marketplace.BuyService(r.Context(), caller, mux.Vars(r)["assetID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) repriceService(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		NewPrice uint64 `json:"new_price"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.app.Marketplace.RepriceService(r.Context(), caller, mux.Vars(r)["assetID"], req.NewPrice)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) withdrawService(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.app.Marketplace.WithdrawService(r.Context(), caller, mux.Vars(r)["assetID"]); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

// =============================================================================
// Asks
// =============================================================================

func (h *handler) placeAsk(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		AskPrice uint64 `json:"ask_price"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.app.Marketplace.CreateOrRepriceAsk(r.Context(), caller, mux.Vars(r)["assetID"], req.AskPrice)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) getAsk(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Marketplace.GetAsk(r.Context(), mux.Vars(r)["assetID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) acceptAsk(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		OriginalVendor string `json:"original_vendor"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.app.Marketplace.AcceptAsk(r.Context(), caller, mux.Vars(r)["assetID"], req.OriginalVendor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) listAsks(w http.ResponseWriter, r *http.Request) {
	recs, err := h.app.Marketplace.ListAsks(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recs)
}

// =============================================================================
// Accounts
// =============================================================================

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	account := strings.TrimSpace(mux.Vars(r)["account"])
	balance, err := h.app.Ledger.Balance(r.Context(), account)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"balance": balance,
	})
}

// =============================================================================
// Helpers
// =============================================================================

func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := middleware.CallerFromContext(r.Context())
	if caller == "" {
		httputil.WriteError(w, http.StatusUnauthorized, apperrors.Unauthorized("caller identity is required"))
		return "", false
	}
	return caller, true
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *apperrors.ServiceError
	if stderrors.As(err, &svcErr) && svcErr.HTTPStatus != 0 {
		httputil.WriteError(w, svcErr.HTTPStatus, svcErr)
		return
	}
	httputil.WriteError(w, http.StatusInternalServerError, err)
}
