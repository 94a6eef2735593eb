package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgref/pkg/logger"
)

const testSecret = "middleware-secret"

type staticBlacklist map[string]bool

func (b staticBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return b[token], nil
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims(affiliate bool) jwt.MapClaims {
	return jwt.MapClaims{
		"wallet_id":       42,
		"is_bg_affiliate": affiliate,
		"exp":             time.Now().Add(time.Hour).Unix(),
		"iat":             time.Now().Unix(),
	}
}

func echoWallet() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := WalletIDFromContext(r.Context())
		if !ok || id != 42 {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		tok, _ := TokenFromContext(r.Context())
		_, hasExp := TokenExpiryFromContext(r.Context())
		if tok != "" && hasExp {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}

func TestAuthenticate(t *testing.T) {
	revoked := signToken(t, validClaims(true))
	blacklist := staticBlacklist{revoked: true}
	mw := NewAuthMiddleware(testSecret, blacklist, logger.NewNop())

	expired := validClaims(true)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noWallet := validClaims(true)
	delete(noWallet, "wallet_id")

	otherSecret, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(true)).SignedString([]byte("other"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + otherSecret, http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, expired), http.StatusUnauthorized},
		{"no wallet claim", "Bearer " + signToken(t, noWallet), http.StatusUnauthorized},
		{"revoked", "Bearer " + revoked, http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, validClaims(false)), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			mw.Authenticate(echoWallet()).ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rr.Body.String(), `"error"`)
			}
		})
	}
}

func TestAuthenticate_WebsocketQueryToken(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, nil, logger.NewNop())
	token := signToken(t, validClaims(true))

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rr := httptest.NewRecorder()
	mw.Authenticate(echoWallet()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	plain := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me?token="+token, nil)
	rr = httptest.NewRecorder()
	mw.Authenticate(echoWallet()).ServeHTTP(rr, plain)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "query tokens are only accepted on websocket handshakes")
}

func TestRequireAffiliate(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, nil, logger.NewNop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := mw.Authenticate(RequireAffiliate(ok))

	for _, tc := range []struct {
		affiliate bool
		want      int
	}{{true, http.StatusOK}, {false, http.StatusForbidden}} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bg-ref/downline-stats", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims(tc.affiliate)))
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, tc.want, rr.Code)
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("configured origin allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://dash.example.com")
		rr := httptest.NewRecorder()
		CORS([]string{"https://dash.example.com"})(next).ServeHTTP(rr, req)
		assert.Equal(t, "https://dash.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin not echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rr := httptest.NewRecorder()
		CORS([]string{"https://dash.example.com"})(next).ServeHTTP(rr, req)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		rr := httptest.NewRecorder()
		CORS(nil)(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	rr := httptest.NewRecorder()

	CorrelationID(Recovery(logger.NewNop())(panicky)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestBodyLimit(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 100)))
	rr := httptest.NewRecorder()

	BodyLimit(10)(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
