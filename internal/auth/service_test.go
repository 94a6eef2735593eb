package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bgref/internal/domain"
	"bgref/pkg/cache"
	"bgref/pkg/errors"
	"bgref/pkg/logger"
)

const testSecret = "test-secret"

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByID(ctx context.Context, id int64) (*domain.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockRepository) FindByEmail(ctx context.Context, email string) (*domain.Wallet, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockRepository) FindByTelegramID(ctx context.Context, telegramID string) (*domain.Wallet, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

// memoryStore round-trips values through JSON like the Redis cache does.
type memoryStore struct {
	items map[string][]byte
	ttls  map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.items[key] = data
	s.ttls[key] = expiration
	return nil
}

func (s *memoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := s.items[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(data, dest)
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	delete(s.items, key)
	return nil
}

func (s *memoryStore) Blacklist(ctx context.Context, token string, expiration time.Duration) error {
	s.ttls["blacklist:"+token] = expiration
	return nil
}

type fakeGoogle struct {
	email string
	err   error
}

func (g fakeGoogle) Email(ctx context.Context, code string) (string, error) {
	return g.email, g.err
}

func testWallet() *domain.Wallet {
	email := "user@example.com"
	tg := "123456789"
	return &domain.Wallet{ID: 42, NickName: "User", Email: &email, TelegramID: &tg, IsBgAffiliate: true}
}

func newTestService(repo Repository, store *memoryStore, google GoogleProvider) *Service {
	return NewService(repo, store, store, google, logger.NewNop(), Options{
		JWTSecret: testSecret,
		JWTExpiry: time.Hour,
		CodeTTL:   5 * time.Minute,
	})
}

func parseClaims(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte(testSecret), nil })
	require.NoError(t, err)
	return parsed.Claims.(jwt.MapClaims)
}

// --- Telegram ---

func TestTelegramLogin_IssueThenLogin(t *testing.T) {
	repo := new(MockRepository)
	store := newMemoryStore()
	svc := newTestService(repo, store, nil)
	repo.On("FindByTelegramID", mock.Anything, "123456789").Return(testWallet(), nil)

	code, err := svc.IssueTelegramCode(context.Background(), &TelegramCodeRequest{ID: "123456789"})
	require.NoError(t, err)
	assert.Len(t, code.Code, loginCodeDigits)
	assert.Equal(t, 5*time.Minute, store.ttls[telegramCodeKey("123456789")])
	assert.NotContains(t, string(store.items[telegramCodeKey("123456789")]), code.Code, "only the hash is stored")

	resp, err := svc.LoginWithTelegram(context.Background(), &TelegramLoginRequest{ID: "123456789", Code: code.Code})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)

	claims := parseClaims(t, resp.Token)
	assert.Equal(t, float64(42), claims[ClaimWalletID])
	assert.Equal(t, true, claims[ClaimIsBgAffiliate])
	assert.NotEmpty(t, claims["jti"])
}

func TestTelegramLogin_CodeIsSingleUse(t *testing.T) {
	repo := new(MockRepository)
	store := newMemoryStore()
	svc := newTestService(repo, store, nil)
	repo.On("FindByTelegramID", mock.Anything, "123456789").Return(testWallet(), nil)

	code, err := svc.IssueTelegramCode(context.Background(), &TelegramCodeRequest{ID: "123456789"})
	require.NoError(t, err)

	_, err = svc.LoginWithTelegram(context.Background(), &TelegramLoginRequest{ID: "123456789", Code: code.Code})
	require.NoError(t, err)

	_, err = svc.LoginWithTelegram(context.Background(), &TelegramLoginRequest{ID: "123456789", Code: code.Code})
	assert.ErrorIs(t, err, errors.ErrInvalidLoginCode)
}

func TestTelegramLogin_WrongCode(t *testing.T) {
	repo := new(MockRepository)
	store := newMemoryStore()
	svc := newTestService(repo, store, nil)
	repo.On("FindByTelegramID", mock.Anything, "123456789").Return(testWallet(), nil)

	code, err := svc.IssueTelegramCode(context.Background(), &TelegramCodeRequest{ID: "123456789"})
	require.NoError(t, err)

	wrong := "000000"
	if code.Code == wrong {
		wrong = "000001"
	}
	_, err = svc.LoginWithTelegram(context.Background(), &TelegramLoginRequest{ID: "123456789", Code: wrong})
	assert.ErrorIs(t, err, errors.ErrInvalidLoginCode)
	assert.Contains(t, store.items, telegramCodeKey("123456789"), "failed attempt does not consume the code")
}

func TestTelegramLogin_NoCodeIssued(t *testing.T) {
	svc := newTestService(new(MockRepository), newMemoryStore(), nil)

	_, err := svc.LoginWithTelegram(context.Background(), &TelegramLoginRequest{ID: "555", Code: "123456"})

	assert.ErrorIs(t, err, errors.ErrInvalidLoginCode)
}

func TestIssueTelegramCode_UnknownAccount(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, newMemoryStore(), nil)
	repo.On("FindByTelegramID", mock.Anything, "999").Return(nil, errors.ErrWalletNotFound)

	_, err := svc.IssueTelegramCode(context.Background(), &TelegramCodeRequest{ID: "999"})

	assert.ErrorIs(t, err, errors.ErrWalletNotFound)
}

// --- Google ---

func TestLoginWithGoogle(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, newMemoryStore(), fakeGoogle{email: "user@example.com"})
	repo.On("FindByEmail", mock.Anything, "user@example.com").Return(testWallet(), nil)

	resp, err := svc.LoginWithGoogle(context.Background(), &EmailLoginRequest{Code: "oauth-code"})

	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.Wallet.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)
}

func TestLoginWithGoogle_Failures(t *testing.T) {
	t.Run("exchange fails", func(t *testing.T) {
		svc := newTestService(new(MockRepository), newMemoryStore(), fakeGoogle{err: stderrors.New("bad code")})
		_, err := svc.LoginWithGoogle(context.Background(), &EmailLoginRequest{Code: "x"})
		assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	})

	t.Run("not configured", func(t *testing.T) {
		svc := newTestService(new(MockRepository), newMemoryStore(), nil)
		_, err := svc.LoginWithGoogle(context.Background(), &EmailLoginRequest{Code: "x"})
		assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, errors.ErrWalletNotFound)
		svc := newTestService(repo, newMemoryStore(), fakeGoogle{email: "new@example.com"})
		_, err := svc.LoginWithGoogle(context.Background(), &EmailLoginRequest{Code: "x"})
		assert.ErrorIs(t, err, errors.ErrWalletNotFound)
	})
}

// --- Logout ---

func TestLogout(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(new(MockRepository), store, nil)

	require.NoError(t, svc.Logout(context.Background(), "tok", time.Now().Add(10*time.Minute)))
	assert.InDelta(t, float64(10*time.Minute), float64(store.ttls["blacklist:tok"]), float64(time.Second))

	require.NoError(t, svc.Logout(context.Background(), "old", time.Now().Add(-time.Minute)))
	assert.NotContains(t, store.ttls, "blacklist:old", "expired tokens need no blacklist entry")
}

func TestBotKey(t *testing.T) {
	key := NewBotKey("s3cret")

	assert.True(t, key.Valid("s3cret"))
	assert.False(t, key.Valid("other"))
	assert.False(t, key.Valid(""))
	assert.False(t, NewBotKey("").Valid(""), "unconfigured key rejects everything")
}
