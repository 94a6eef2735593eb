package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SortField names the MemberRecord attribute a report is ordered by.
type SortField string

const (
	SortByCommission   SortField = "commission"
	SortByVolume       SortField = "volume"
	SortByTransactions SortField = "transactions"
	SortByLevel        SortField = "level"
)

// Valid reports whether f is a known sort field.
func (f SortField) Valid() bool {
	switch f {
	case SortByCommission, SortByVolume, SortByTransactions, SortByLevel:
		return true
	}
	return false
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// DefaultSortOrder applies when a filter leaves SortOrder empty.
const DefaultSortOrder = SortDesc

// FilterSpec holds the downline filter criteria. A nil bound imposes no
// constraint on that side; a zero bound is a real bound.
type FilterSpec struct {
	StartDate     *time.Time       `json:"startDate,omitempty"`
	EndDate       *time.Time       `json:"endDate,omitempty"`
	MinCommission *decimal.Decimal `json:"minCommission,omitempty"`
	MaxCommission *decimal.Decimal `json:"maxCommission,omitempty"`
	MinVolume     *decimal.Decimal `json:"minVolume,omitempty"`
	MaxVolume     *decimal.Decimal `json:"maxVolume,omitempty"`
	Level         *int             `json:"level,omitempty"`
	SortBy        SortField        `json:"sortBy,omitempty"`
	SortOrder     SortOrder        `json:"sortOrder,omitempty"`
}

// HasDateBounds reports whether either date bound is set.
func (f FilterSpec) HasDateBounds() bool {
	return f.StartDate != nil || f.EndDate != nil
}

// EffectiveSortOrder resolves an empty or unknown order to DefaultSortOrder.
func (f FilterSpec) EffectiveSortOrder() SortOrder {
	if f.SortOrder == SortAsc {
		return SortAsc
	}
	return DefaultSortOrder
}

// LevelAggregate sums the filtered members sharing one level.
type LevelAggregate struct {
	Count             int             `json:"count"`
	TotalCommission   decimal.Decimal `json:"totalCommission"`
	TotalVolume       decimal.Decimal `json:"totalVolume"`
	TotalTransactions int64           `json:"totalTransactions"`
}

// AggregateReport is the filtered, sorted downline with its totals.
type AggregateReport struct {
	TotalMembers          int                    `json:"totalMembers"`
	TotalCommissionEarned decimal.Decimal        `json:"totalCommissionEarned"`
	TotalVolume           decimal.Decimal        `json:"totalVolume"`
	TotalTransactions     int64                  `json:"totalTransactions"`
	Stats                 map[int]LevelAggregate `json:"stats"`
	MembersByLevel        map[int]int            `json:"membersByLevel"`
	DetailedMembers       []MemberRecord         `json:"detailedMembers"`
}

// DataSource tells the dashboard where a response's data came from.
type DataSource string

const (
	DataSourceLive     DataSource = "live"
	DataSourceCache    DataSource = "cache"
	DataSourceFallback DataSource = "fallback"
)

// DownlineStats is the downline-stats response: the report plus provenance.
type DownlineStats struct {
	IsBgAffiliate bool       `json:"isBgAffiliate"`
	DataSource    DataSource `json:"dataSource"`
	Degraded      bool       `json:"degraded"`
	Filter        FilterSpec `json:"filter"`
	*AggregateReport
}

// Overview bundles the dashboard landing data.
type Overview struct {
	Status *AffiliateStatus `json:"status"`
	Stats  *AffiliateStats  `json:"stats"`
	Tree   *AffiliateTree   `json:"tree"`
}
