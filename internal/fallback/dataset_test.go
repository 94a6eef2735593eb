package fallback

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgref/internal/domain"
	"bgref/internal/downline"
	"bgref/pkg/errors"
)

func TestDownlineRecords_SatisfyInvariants(t *testing.T) {
	require.NoError(t, domain.ValidateRecords(DownlineRecords()))
}

func TestDownlineRecords_Totals(t *testing.T) {
	report := downline.Aggregate(DownlineRecords(), domain.FilterSpec{})

	assert.Equal(t, 5, report.TotalMembers)
	assert.True(t, report.TotalCommissionEarned.Equal(decimal.NewFromFloat(185)))
	assert.True(t, report.TotalVolume.Equal(decimal.NewFromInt(7000)))
	assert.Equal(t, int64(35), report.TotalTransactions)
	assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 1}, report.MembersByLevel)
}

func TestAccessorsReturnCopies(t *testing.T) {
	first := DownlineRecords()
	first[0].Level = 99

	assert.Equal(t, 1, DownlineRecords()[0].Level)
}

func TestSource_RefusesWrites(t *testing.T) {
	err := Source{}.UpdateCommissionPercent(context.Background(), 1, 2, decimal.NewFromInt(5))

	assert.ErrorIs(t, err, errors.ErrSourceUnavailable)
}

func TestTree_DirectDownline(t *testing.T) {
	tree := Tree()

	node, ok := tree.DirectDownline(789012)
	require.True(t, ok)
	assert.Equal(t, "35", node.CommissionPercent.String())

	_, ok = tree.DirectDownline(123458)
	assert.False(t, ok, "level-2 node is not a direct downline")
}
