// Package domain re-exports core domain types so internal code can import
// `bgref/internal/domain` while using definitions from `bgref/pkg/domain`.
package domain

import pkg "bgref/pkg/domain"

// MemberRecord is one downline participant's performance snapshot.
type MemberRecord = pkg.MemberRecord

// WalletInfo is the display identity embedded in a MemberRecord.
type WalletInfo = pkg.WalletInfo

// Wallet is a dashboard login identity.
type Wallet = pkg.Wallet

// FilterSpec holds downline filter criteria.
type FilterSpec = pkg.FilterSpec

// SortField names a sortable MemberRecord attribute.
type SortField = pkg.SortField

// SortOrder is asc or desc.
type SortOrder = pkg.SortOrder

// LevelAggregate sums members sharing one level.
type LevelAggregate = pkg.LevelAggregate

// AggregateReport is the engine's output.
type AggregateReport = pkg.AggregateReport

// DownlineStats wraps a report with provenance.
type DownlineStats = pkg.DownlineStats

// DataSource names where a response's data came from.
type DataSource = pkg.DataSource

// CommissionEntry is one credited reward.
type CommissionEntry = pkg.CommissionEntry

// AffiliateStatus, AffiliateStats and AffiliateTree are the dashboard views.
type (
	AffiliateStatus = pkg.AffiliateStatus
	AffiliateStats  = pkg.AffiliateStats
	AffiliateTree   = pkg.AffiliateTree
	DownlineNode    = pkg.DownlineNode
	NodeWallet      = pkg.NodeWallet
	NodeSummary     = pkg.NodeSummary
	NodeInfo        = pkg.NodeInfo
	TreeInfo        = pkg.TreeInfo
	TreeSummary     = pkg.TreeSummary
	Referrer        = pkg.Referrer
	WalletSummary   = pkg.WalletSummary
	Overview        = pkg.Overview
)

// Re-exported sort fields.
const (
	SortByCommission   = pkg.SortByCommission
	SortByVolume       = pkg.SortByVolume
	SortByTransactions = pkg.SortByTransactions
	SortByLevel        = pkg.SortByLevel
)

// Re-exported sort orders.
const (
	SortAsc          = pkg.SortAsc
	SortDesc         = pkg.SortDesc
	DefaultSortOrder = pkg.DefaultSortOrder
)

// Re-exported data sources.
const (
	DataSourceLive     = pkg.DataSourceLive
	DataSourceCache    = pkg.DataSourceCache
	DataSourceFallback = pkg.DataSourceFallback
)

// ValidateRecords joins the invariant violations of every record.
var ValidateRecords = pkg.ValidateRecords
