package handler

import (
	"context"
	"net/http"

	"bgref/internal/affiliate"
	"bgref/internal/domain"
	"bgref/internal/downline"
	"bgref/internal/middleware"
	"bgref/pkg/validator"
)

// AffiliateService is the dashboard read and write surface.
type AffiliateService interface {
	DownlineStats(ctx context.Context, walletID int64, spec domain.FilterSpec) (*domain.DownlineStats, error)
	CommissionHistory(ctx context.Context, walletID int64) ([]domain.CommissionEntry, error)
	Status(ctx context.Context, walletID int64) (*domain.AffiliateStatus, error)
	Stats(ctx context.Context, walletID int64) (*domain.AffiliateStats, error)
	Tree(ctx context.Context, walletID int64) (*domain.AffiliateTree, error)
	Overview(ctx context.Context, walletID int64) (*domain.Overview, error)
	UpdateCommissionPercent(ctx context.Context, fromWalletID int64, req *affiliate.UpdateCommissionRequest) (*affiliate.CommissionUpdate, error)
}

// AffiliateHandler serves the /bg-ref endpoints.
type AffiliateHandler struct {
	service   AffiliateService
	validator *validator.Validator
	logger    Logger
}

// NewAffiliateHandler creates a new AffiliateHandler.
func NewAffiliateHandler(service AffiliateService, val *validator.Validator, log Logger) *AffiliateHandler {
	return &AffiliateHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

// DownlineStats filters, sorts and aggregates the caller's downline using the
// query parameters startDate, endDate, minCommission, maxCommission,
// minVolume, maxVolume, level, sortBy and sortOrder.
func (h *AffiliateHandler) DownlineStats(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.wallet(w, r)
	if !ok {
		return
	}

	spec, ignored := downline.ParseFilter(r.URL.Query())
	if len(ignored) > 0 {
		h.logger.Info("Ignoring malformed downline filter parameters", map[string]interface{}{
			"wallet_id": walletID,
			"params":    ignored,
		})
	}

	stats, err := h.service.DownlineStats(r.Context(), walletID, spec)
	if err != nil {
		h.respondServiceError(w, walletID, "Failed to load downline stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// CommissionHistory lists the caller's commission entries.
func (h *AffiliateHandler) CommissionHistory(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.wallet(w, r)
	if !ok {
		return
	}
	history, err := h.service.CommissionHistory(r.Context(), walletID)
	if err != nil {
		h.respondServiceError(w, walletID, "Failed to load commission history", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"commissions": history})
}

func (h *AffiliateHandler) MyStatus(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.wallet(w, r)
	if !ok {
		return
	}
	status, err := h.service.Status(r.Context(), walletID)
	if err != nil {
		h.respondServiceError(w, walletID, "Failed to load affiliate status", err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *AffiliateHandler) Stats(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.wallet(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(r.Context(), walletID)
	if err != nil {
		h.respondServiceError(w, walletID, "Failed to load affiliate stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *AffiliateHandler) Tree(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.wallet(w, r)
	if !ok {
		return
	}
	tree, err := h.service.Tree(r.Context(), walletID)
	if err != nil {
		h.respondServiceError(w, walletID, "Failed to load affiliate tree", err)
		return
	}
	respondJSON(w, http.StatusOK, tree)
}

// Overview returns status, stats and tree in one response.
func (h *AffiliateHandler) Overview(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.wallet(w, r)
	if !ok {
		return
	}
	overview, err := h.service.Overview(r.Context(), walletID)
	if err != nil {
		h.respondServiceError(w, walletID, "Failed to load affiliate overview", err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// UpdateCommission sets the percent of a direct downline member.
func (h *AffiliateHandler) UpdateCommission(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.wallet(w, r)
	if !ok {
		return
	}

	var req affiliate.UpdateCommissionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); len(errs) > 0 {
		respondValidationErrors(w, errs)
		return
	}

	update, err := h.service.UpdateCommissionPercent(r.Context(), walletID, &req)
	if err != nil {
		h.respondServiceError(w, walletID, "Commission update failed", err)
		return
	}
	respondJSON(w, http.StatusOK, update)
}

func (h *AffiliateHandler) wallet(w http.ResponseWriter, r *http.Request) (int64, bool) {
	walletID, ok := middleware.WalletIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, false
	}
	return walletID, true
}

func (h *AffiliateHandler) respondServiceError(w http.ResponseWriter, walletID int64, msg string, err error) {
	status, message := statusFor(err)
	fields := map[string]interface{}{
		"wallet_id": walletID,
		"error":     err.Error(),
		"status":    status,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, fields)
	} else {
		h.logger.Warn(msg, fields)
	}
	respondError(w, status, message)
}
