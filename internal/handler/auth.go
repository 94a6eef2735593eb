package handler

import (
	"context"
	"net/http"
	"time"

	"bgref/internal/auth"
	"bgref/internal/domain"
	"bgref/internal/middleware"
	"bgref/pkg/validator"
)

// AuthService is the login surface the handler drives.
type AuthService interface {
	LoginWithGoogle(ctx context.Context, req *auth.EmailLoginRequest) (*auth.LoginResponse, error)
	IssueTelegramCode(ctx context.Context, req *auth.TelegramCodeRequest) (*auth.TelegramCode, error)
	LoginWithTelegram(ctx context.Context, req *auth.TelegramLoginRequest) (*auth.LoginResponse, error)
	Me(ctx context.Context, walletID int64) (*domain.Wallet, error)
	Logout(ctx context.Context, token string, expiresAt time.Time) error
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	service   AuthService
	botKey    *auth.BotKey
	validator *validator.Validator
	logger    Logger
}

// NewAuthHandler creates a new AuthHandler. botKey may be nil, in which case
// the bot-facing code endpoint refuses every request.
func NewAuthHandler(service AuthService, botKey *auth.BotKey, val *validator.Validator, log Logger) *AuthHandler {
	return &AuthHandler{
		service:   service,
		botKey:    botKey,
		validator: val,
		logger:    log,
	}
}

// LoginEmail exchanges a Google authorization code for a session token.
func (h *AuthHandler) LoginEmail(w http.ResponseWriter, r *http.Request) {
	var req auth.EmailLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); len(errs) > 0 {
		respondValidationErrors(w, errs)
		return
	}

	resp, err := h.service.LoginWithGoogle(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, "Google login failed", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// TelegramCode is called by the bot to obtain a login code for a user.
func (h *AuthHandler) TelegramCode(w http.ResponseWriter, r *http.Request) {
	if h.botKey == nil || !h.botKey.Valid(r.Header.Get("X-Bot-Key")) {
		respondError(w, http.StatusUnauthorized, "Invalid bot key")
		return
	}

	var req auth.TelegramCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); len(errs) > 0 {
		respondValidationErrors(w, errs)
		return
	}

	code, err := h.service.IssueTelegramCode(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, "Telegram code issue failed", err)
		return
	}
	respondJSON(w, http.StatusCreated, code)
}

// TelegramLogin consumes a bot-issued code.
func (h *AuthHandler) TelegramLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.TelegramLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); len(errs) > 0 {
		respondValidationErrors(w, errs)
		return
	}

	resp, err := h.service.LoginWithTelegram(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, "Telegram login failed", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated wallet.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	walletID, ok := middleware.WalletIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	wallet, err := h.service.Me(r.Context(), walletID)
	if err != nil {
		h.respondServiceError(w, "Failed to load wallet", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": wallet})
}

// Logout revokes the bearer token of the request.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	expiresAt, _ := middleware.TokenExpiryFromContext(r.Context())

	if err := h.service.Logout(r.Context(), token, expiresAt); err != nil {
		h.respondServiceError(w, "Logout failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *AuthHandler) respondServiceError(w http.ResponseWriter, msg string, err error) {
	status, message := statusFor(err)
	fields := map[string]interface{}{"error": err.Error(), "status": status}
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, fields)
	} else {
		h.logger.Warn(msg, fields)
	}
	respondError(w, status, message)
}
