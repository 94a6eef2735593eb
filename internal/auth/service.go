// Package auth implements dashboard login (Google and Telegram) and token issuance.
package auth

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bgref/internal/domain"
	"bgref/pkg/cache"
	"bgref/pkg/errors"
	"bgref/pkg/logger"
)

const loginCodeDigits = 6

// Claim names carried by issued tokens.
const (
	ClaimWalletID      = "wallet_id"
	ClaimIsBgAffiliate = "is_bg_affiliate"
)

// Repository looks up login identities.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*domain.Wallet, error)
	FindByEmail(ctx context.Context, email string) (*domain.Wallet, error)
	FindByTelegramID(ctx context.Context, telegramID string) (*domain.Wallet, error)
}

// CodeStore keeps hashed one-time Telegram login codes.
type CodeStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// TokenBlacklist records logged-out tokens until they expire.
type TokenBlacklist interface {
	Blacklist(ctx context.Context, token string, expiration time.Duration) error
}

// GoogleProvider turns an OAuth authorization code into a verified email.
type GoogleProvider interface {
	Email(ctx context.Context, code string) (string, error)
}

// Service provides login, logout and token issuance.
type Service struct {
	repo      Repository
	codes     CodeStore
	blacklist TokenBlacklist
	google    GoogleProvider
	logger    logger.Logger
	jwtSecret string
	jwtExpiry time.Duration
	codeTTL   time.Duration
}

// Options carries the token and code lifetimes.
type Options struct {
	JWTSecret string
	JWTExpiry time.Duration
	CodeTTL   time.Duration
}

// NewService constructs a Service. google may be nil when Google login is
// not configured.
func NewService(repo Repository, codes CodeStore, blacklist TokenBlacklist, google GoogleProvider, log logger.Logger, opts Options) *Service {
	return &Service{
		repo:      repo,
		codes:     codes,
		blacklist: blacklist,
		google:    google,
		logger:    log,
		jwtSecret: opts.JWTSecret,
		jwtExpiry: opts.JWTExpiry,
		codeTTL:   opts.CodeTTL,
	}
}

// EmailLoginRequest carries the Google authorization code.
type EmailLoginRequest struct {
	Code string `json:"code" validate:"required"`
}

// TelegramLoginRequest carries the code the bot sent to the user.
type TelegramLoginRequest struct {
	ID   string `json:"id" validate:"required,telegram_id"`
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// TelegramCodeRequest is sent by the bot to obtain a code for a user.
type TelegramCodeRequest struct {
	ID string `json:"id" validate:"required,telegram_id"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Status    int            `json:"status"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Wallet    *domain.Wallet `json:"user"`
}

// TelegramCode is the plaintext code handed back to the bot.
type TelegramCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type storedCode struct {
	Hash string `json:"hash"`
}

func telegramCodeKey(telegramID string) string {
	return "login:telegram:" + telegramID
}

// LoginWithGoogle exchanges an OAuth code and logs in the wallet bound to the
// resulting email.
func (s *Service) LoginWithGoogle(ctx context.Context, req *EmailLoginRequest) (*LoginResponse, error) {
	if s.google == nil {
		return nil, errors.ErrInvalidCredentials
	}
	email, err := s.google.Email(ctx, req.Code)
	if err != nil {
		s.logger.Warn("Google code exchange failed", map[string]interface{}{"error": err.Error()})
		return nil, errors.ErrInvalidCredentials
	}

	wallet, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.issueToken(wallet)
}

// IssueTelegramCode creates a one-time login code for the given Telegram
// account. Only its hash is stored.
func (s *Service) IssueTelegramCode(ctx context.Context, req *TelegramCodeRequest) (*TelegramCode, error) {
	if _, err := s.repo.FindByTelegramID(ctx, req.ID); err != nil {
		return nil, err
	}

	code, err := generateNumericCode(loginCodeDigits)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash login code: %w", err)
	}
	if err := s.codes.Set(ctx, telegramCodeKey(req.ID), storedCode{Hash: string(hash)}, s.codeTTL); err != nil {
		return nil, errors.Wrap(err, "failed to store login code")
	}

	return &TelegramCode{Code: code, ExpiresAt: time.Now().Add(s.codeTTL)}, nil
}

// LoginWithTelegram consumes a code issued by IssueTelegramCode.
func (s *Service) LoginWithTelegram(ctx context.Context, req *TelegramLoginRequest) (*LoginResponse, error) {
	var stored storedCode
	if err := s.codes.Get(ctx, telegramCodeKey(req.ID), &stored); err != nil {
		if stderrors.Is(err, cache.ErrMiss) {
			return nil, errors.ErrInvalidLoginCode
		}
		return nil, errors.Wrap(err, "failed to read login code")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Hash), []byte(req.Code)); err != nil {
		return nil, errors.ErrInvalidLoginCode
	}
	if err := s.codes.Delete(ctx, telegramCodeKey(req.ID)); err != nil {
		return nil, errors.Wrap(err, "failed to consume login code")
	}

	wallet, err := s.repo.FindByTelegramID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return s.issueToken(wallet)
}

// Me returns the wallet behind an authenticated request.
func (s *Service) Me(ctx context.Context, walletID int64) (*domain.Wallet, error) {
	return s.repo.FindByID(ctx, walletID)
}

// Logout revokes token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(s.blacklist.Blacklist(ctx, token, ttl), "failed to revoke token")
}

func (s *Service) issueToken(wallet *domain.Wallet) (*LoginResponse, error) {
	now := time.Now()
	expiresAt := now.Add(s.jwtExpiry)

	claims := jwt.MapClaims{
		ClaimWalletID:      wallet.ID,
		ClaimIsBgAffiliate: wallet.IsBgAffiliate,
		"exp":              expiresAt.Unix(),
		"iat":              now.Unix(),
		"jti":              uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("Wallet logged in", map[string]interface{}{
		"wallet_id":       wallet.ID,
		"is_bg_affiliate": wallet.IsBgAffiliate,
	})

	return &LoginResponse{
		Status:    http.StatusOK,
		Token:     signed,
		ExpiresAt: expiresAt,
		Wallet:    wallet,
	}, nil
}

func generateNumericCode(digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate login code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
