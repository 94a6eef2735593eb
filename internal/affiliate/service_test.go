package affiliate

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bgref/internal/domain"
	"bgref/internal/fallback"
	"bgref/pkg/cache"
	"bgref/pkg/errors"
	"bgref/pkg/logger"
)

// --- Mocks ---

type MockSource struct {
	mock.Mock
}

func (m *MockSource) DownlineRecords(ctx context.Context, walletID int64) ([]domain.MemberRecord, error) {
	args := m.Called(ctx, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MemberRecord), args.Error(1)
}

func (m *MockSource) CommissionHistory(ctx context.Context, walletID int64) ([]domain.CommissionEntry, error) {
	args := m.Called(ctx, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CommissionEntry), args.Error(1)
}

func (m *MockSource) Status(ctx context.Context, walletID int64) (*domain.AffiliateStatus, error) {
	args := m.Called(ctx, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AffiliateStatus), args.Error(1)
}

func (m *MockSource) Stats(ctx context.Context, walletID int64) (*domain.AffiliateStats, error) {
	args := m.Called(ctx, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AffiliateStats), args.Error(1)
}

func (m *MockSource) Tree(ctx context.Context, walletID int64) (*domain.AffiliateTree, error) {
	args := m.Called(ctx, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AffiliateTree), args.Error(1)
}

func (m *MockSource) UpdateCommissionPercent(ctx context.Context, fromWalletID, toWalletID int64, percent decimal.Decimal) error {
	args := m.Called(ctx, fromWalletID, toWalletID, percent)
	return args.Error(0)
}

// memoryCache is a map-backed SnapshotCache.
type memoryCache struct {
	items map[string][]domain.MemberRecord
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]domain.MemberRecord)}
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.items[key] = value.([]domain.MemberRecord)
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := c.items[key]
	if !ok {
		return cache.ErrMiss
	}
	*dest.(*[]domain.MemberRecord) = v
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	delete(c.items, key)
	return nil
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(walletID int64, eventType string, payload interface{}) {
	m.Called(walletID, eventType, payload)
}

var errUpstreamDown = stderrors.New("dial tcp: connection refused")

func newTestService(src Source, snapshots SnapshotCache, notifier Notifier, opts Options) *Service {
	return NewService(src, fallback.Source{}, snapshots, notifier, logger.NewNop(), opts)
}

// --- DownlineStats ---

func TestDownlineStats_Live(t *testing.T) {
	src := new(MockSource)
	snapshots := newMemoryCache()
	svc := newTestService(src, snapshots, nil, Options{})

	records := fallback.DownlineRecords()
	src.On("DownlineRecords", mock.Anything, int64(7)).Return(records, nil)

	level := 1
	stats, err := svc.DownlineStats(context.Background(), 7, domain.FilterSpec{Level: &level})

	require.NoError(t, err)
	assert.Equal(t, domain.DataSourceLive, stats.DataSource)
	assert.False(t, stats.Degraded)
	assert.True(t, stats.IsBgAffiliate)
	assert.Equal(t, 2, stats.TotalMembers)
	assert.True(t, stats.TotalCommissionEarned.Equal(decimal.NewFromInt(125)))
	assert.Len(t, snapshots.items[snapshotKey(7)], 5, "live fetch refreshes the snapshot")
	src.AssertExpectations(t)
}

func TestDownlineStats_FallsBackToSnapshot(t *testing.T) {
	src := new(MockSource)
	snapshots := newMemoryCache()
	snapshots.items[snapshotKey(7)] = fallback.DownlineRecords()[:2]
	svc := newTestService(src, snapshots, nil, Options{EnableFallbackMode: true})

	src.On("DownlineRecords", mock.Anything, int64(7)).Return(nil, errUpstreamDown)

	stats, err := svc.DownlineStats(context.Background(), 7, domain.FilterSpec{})

	require.NoError(t, err)
	assert.Equal(t, domain.DataSourceCache, stats.DataSource)
	assert.True(t, stats.Degraded)
	assert.Equal(t, 2, stats.TotalMembers)
}

func TestDownlineStats_FallsBackToCannedData(t *testing.T) {
	src := new(MockSource)
	svc := newTestService(src, newMemoryCache(), nil, Options{EnableFallbackMode: true})

	src.On("DownlineRecords", mock.Anything, int64(7)).Return(nil, errUpstreamDown)

	stats, err := svc.DownlineStats(context.Background(), 7, domain.FilterSpec{SortBy: domain.SortByCommission})

	require.NoError(t, err)
	assert.Equal(t, domain.DataSourceFallback, stats.DataSource)
	assert.Equal(t, 5, stats.TotalMembers)
	assert.Equal(t, int64(789012), stats.DetailedMembers[0].WalletID)
}

func TestDownlineStats_SourceUnavailableWithoutFallback(t *testing.T) {
	src := new(MockSource)
	svc := newTestService(src, newMemoryCache(), nil, Options{EnableFallbackMode: false})

	src.On("DownlineRecords", mock.Anything, int64(7)).Return(nil, errUpstreamDown)

	_, err := svc.DownlineStats(context.Background(), 7, domain.FilterSpec{})

	assert.ErrorIs(t, err, errors.ErrSourceUnavailable)
}

func TestDownlineStats_DomainErrorsAreNotMasked(t *testing.T) {
	src := new(MockSource)
	svc := newTestService(src, newMemoryCache(), nil, Options{EnableFallbackMode: true})

	src.On("DownlineRecords", mock.Anything, int64(7)).Return(nil, errors.ErrNotBgAffiliate)

	_, err := svc.DownlineStats(context.Background(), 7, domain.FilterSpec{})

	assert.ErrorIs(t, err, errors.ErrNotBgAffiliate)
}

// --- Read views ---

func TestTree_FallbackModeServesCannedTree(t *testing.T) {
	src := new(MockSource)
	svc := newTestService(src, nil, nil, Options{EnableFallbackMode: true})

	src.On("Tree", mock.Anything, int64(7)).Return(nil, errUpstreamDown)

	tree, err := svc.Tree(context.Background(), 7)

	require.NoError(t, err)
	assert.Len(t, tree.DownlineNodes, 2)
}

func TestCommissionHistory_PassesThroughLiveData(t *testing.T) {
	src := new(MockSource)
	svc := newTestService(src, nil, nil, Options{})

	entries := fallback.CommissionHistory()[:1]
	src.On("CommissionHistory", mock.Anything, int64(7)).Return(entries, nil)

	got, err := svc.CommissionHistory(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestOverview_LoadsAllViews(t *testing.T) {
	src := new(MockSource)
	svc := newTestService(src, nil, nil, Options{})

	src.On("Status", mock.Anything, int64(7)).Return(fallback.Status(7), nil)
	src.On("Stats", mock.Anything, int64(7)).Return(fallback.Stats(), nil)
	src.On("Tree", mock.Anything, int64(7)).Return(fallback.Tree(), nil)

	overview, err := svc.Overview(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, int64(7), overview.Status.CurrentWallet.WalletID)
	assert.True(t, overview.Stats.TotalEarnings.Equal(decimal.RequireFromString("125.5")))
	assert.Len(t, overview.Tree.DownlineNodes, 2)
	src.AssertExpectations(t)
}

func TestOverview_FailsWhenAnyViewFails(t *testing.T) {
	src := new(MockSource)
	svc := newTestService(src, nil, nil, Options{})

	src.On("Status", mock.Anything, int64(7)).Return(fallback.Status(7), nil)
	src.On("Stats", mock.Anything, int64(7)).Return(nil, errors.ErrNotBgAffiliate)
	src.On("Tree", mock.Anything, int64(7)).Return(fallback.Tree(), nil)

	_, err := svc.Overview(context.Background(), 7)

	assert.ErrorIs(t, err, errors.ErrNotBgAffiliate)
}

// --- UpdateCommissionPercent ---

func TestUpdateCommissionPercent_Success(t *testing.T) {
	src := new(MockSource)
	snapshots := newMemoryCache()
	snapshots.items[snapshotKey(7)] = fallback.DownlineRecords()
	notifier := new(MockNotifier)
	svc := newTestService(src, snapshots, notifier, Options{CommissionNeverIncrease: true})

	newPercent := decimal.NewFromInt(20)
	src.On("Tree", mock.Anything, int64(7)).Return(fallback.Tree(), nil)
	src.On("UpdateCommissionPercent", mock.Anything, int64(7), int64(789012), newPercent).Return(nil)
	notifier.On("Publish", int64(789012), EventCommissionUpdated, mock.AnythingOfType("*affiliate.CommissionUpdate")).Return()

	update, err := svc.UpdateCommissionPercent(context.Background(), 7, &UpdateCommissionRequest{
		ToWalletID: 789012,
		NewPercent: newPercent,
	})

	require.NoError(t, err)
	assert.Equal(t, "35", update.PreviousPercent.String())
	assert.Equal(t, "20", update.NewPercent.String())
	assert.NotContains(t, snapshots.items, snapshotKey(7), "snapshot invalidated")
	src.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestUpdateCommissionPercent_Policy(t *testing.T) {
	tests := []struct {
		name          string
		toWalletID    int64
		percent       string
		neverIncrease bool
		wantErr       error
	}{
		{"above hundred", 789012, "100.01", true, errors.ErrInvalidCommissionPercent},
		{"negative", 789012, "-1", true, errors.ErrInvalidCommissionPercent},
		{"level two node", 123458, "10", true, errors.ErrNotDirectDownline},
		{"unknown wallet", 42, "10", true, errors.ErrNotDirectDownline},
		{"increase refused", 789012, "36", true, errors.ErrCommissionIncrease},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := new(MockSource)
			svc := newTestService(src, nil, nil, Options{CommissionNeverIncrease: tt.neverIncrease})
			src.On("Tree", mock.Anything, int64(7)).Return(fallback.Tree(), nil).Maybe()

			_, err := svc.UpdateCommissionPercent(context.Background(), 7, &UpdateCommissionRequest{
				ToWalletID: tt.toWalletID,
				NewPercent: decimal.RequireFromString(tt.percent),
			})

			assert.ErrorIs(t, err, tt.wantErr)
			src.AssertNotCalled(t, "UpdateCommissionPercent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateCommissionPercent_IncreaseAllowedWhenPolicyOff(t *testing.T) {
	src := new(MockSource)
	svc := newTestService(src, nil, nil, Options{CommissionNeverIncrease: false})

	percent := decimal.NewFromInt(50)
	src.On("Tree", mock.Anything, int64(7)).Return(fallback.Tree(), nil)
	src.On("UpdateCommissionPercent", mock.Anything, int64(7), int64(789012), percent).Return(nil)

	_, err := svc.UpdateCommissionPercent(context.Background(), 7, &UpdateCommissionRequest{ToWalletID: 789012, NewPercent: percent})

	assert.NoError(t, err)
}

func TestUpdateCommissionPercent_NotAffiliate(t *testing.T) {
	src := new(MockSource)
	svc := newTestService(src, nil, nil, Options{CommissionNeverIncrease: true})

	src.On("Tree", mock.Anything, int64(7)).Return(&domain.AffiliateTree{IsBgAffiliate: false}, nil)

	_, err := svc.UpdateCommissionPercent(context.Background(), 7, &UpdateCommissionRequest{ToWalletID: 789012, NewPercent: decimal.NewFromInt(1)})

	assert.ErrorIs(t, err, errors.ErrNotBgAffiliate)
}

func TestUpdateCommissionPercent_NeverWritesToFallback(t *testing.T) {
	src := new(MockSource)
	svc := newTestService(src, nil, nil, Options{EnableFallbackMode: true, CommissionNeverIncrease: true})

	src.On("Tree", mock.Anything, int64(7)).Return(nil, errUpstreamDown)

	_, err := svc.UpdateCommissionPercent(context.Background(), 7, &UpdateCommissionRequest{ToWalletID: 789012, NewPercent: decimal.NewFromInt(1)})

	assert.ErrorIs(t, err, errors.ErrSourceUnavailable)
}
