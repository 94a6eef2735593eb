// Package middleware hosts authentication, logging, and rate limiting middleware.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"bgref/pkg/logger"
)

// contextKey avoids collisions when storing values in request contexts.
type contextKey string

const (
	ctxWalletIDKey      contextKey = "wallet_id"
	ctxIsBgAffiliateKey contextKey = "is_bg_affiliate"
	ctxTokenKey         contextKey = "token"
	ctxTokenExpiryKey   contextKey = "token_expiry"
)

// TokenChecker reports whether a token was revoked.
type TokenChecker interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware validates bearer JWTs and injects wallet identity into the context.
type AuthMiddleware struct {
	jwtSecret string
	blacklist TokenChecker
	logger    logger.Logger
}

// NewAuthMiddleware constructs an AuthMiddleware. blacklist may be nil.
func NewAuthMiddleware(secret string, blacklist TokenChecker, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: secret, blacklist: blacklist, logger: log}
}

// bearerToken reads the Authorization header. Websocket handshakes may pass
// the token as a query parameter instead, since browsers cannot set headers.
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if strings.TrimSpace(authHeader) == "" {
		if websocket.IsWebSocketUpgrade(r) {
			if t := r.URL.Query().Get("token"); t != "" {
				return t, ""
			}
		}
		return "", "Authorization header required"
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "Invalid authorization format"
	}
	return parts[1], ""
}

// Authenticate enforces bearer auth and populates wallet details on the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, problem := bearerToken(r)
		if problem != "" {
			jsonError(w, http.StatusUnauthorized, problem)
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(m.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		walletID, ok := claims["wallet_id"].(float64)
		if !ok || walletID <= 0 {
			jsonError(w, http.StatusUnauthorized, "Invalid wallet ID in token")
			return
		}

		if m.blacklist != nil {
			revoked, err := m.blacklist.IsBlacklisted(r.Context(), tokenString)
			if err != nil {
				m.logger.Error("Token blacklist lookup failed", map[string]interface{}{"error": err.Error()})
				jsonError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if revoked {
				jsonError(w, http.StatusUnauthorized, "Token revoked")
				return
			}
		}

		ctx := context.WithValue(r.Context(), ctxWalletIDKey, int64(walletID))
		ctx = context.WithValue(ctx, ctxTokenKey, tokenString)
		if affiliate, ok := claims["is_bg_affiliate"].(bool); ok {
			ctx = context.WithValue(ctx, ctxIsBgAffiliateKey, affiliate)
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			ctx = context.WithValue(ctx, ctxTokenExpiryKey, exp.Time)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAffiliate rejects wallets that are not BG affiliates. It must run
// after Authenticate.
func RequireAffiliate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsBgAffiliateFromContext(r.Context()) {
			jsonError(w, http.StatusForbidden, "BG affiliate access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WalletIDFromContext returns the authenticated wallet ID from context.
func WalletIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxWalletIDKey).(int64)
	return id, ok
}

// IsBgAffiliateFromContext reports the token's affiliate flag.
func IsBgAffiliateFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(ctxIsBgAffiliateKey).(bool)
	return v
}

// TokenFromContext returns the raw bearer token of the request.
func TokenFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxTokenKey).(string)
	return s, ok
}

// TokenExpiryFromContext returns the token's exp claim.
func TokenExpiryFromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(ctxTokenExpiryKey).(time.Time)
	return t, ok
}

// CORS allows the configured origins. With no origins configured the request
// origin is reflected, which suits local development.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if len(allowedOrigins) > 0 {
				for _, o := range allowedOrigins {
					if strings.EqualFold(strings.TrimSpace(o), origin) {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Set("Vary", "Origin")
						break
					}
				}
			} else if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Idempotency-Key, X-Bot-Key")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
