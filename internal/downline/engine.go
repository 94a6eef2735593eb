// Package downline filters, sorts and aggregates downline member records.
//
// Aggregate is a pure function: it performs no I/O, keeps no state between
// calls and never mutates its input, so concurrent calls need no locking.
package downline

import (
	"sort"

	"github.com/shopspring/decimal"

	"bgref/internal/domain"
)

// MissingDatePolicy decides what happens to a record without a
// LastTransactionDate while a date bound is active.
type MissingDatePolicy int

const (
	// ExcludeMissingDates drops undated records from date-bounded results.
	ExcludeMissingDates MissingDatePolicy = iota
	// IncludeMissingDates keeps undated records regardless of date bounds.
	IncludeMissingDates
)

// DefaultMissingDatePolicy is the policy Aggregate applies.
const DefaultMissingDatePolicy = ExcludeMissingDates

// Aggregate applies spec to records and returns the filtered, sorted members
// together with grand and per-level totals.
func Aggregate(records []domain.MemberRecord, spec domain.FilterSpec) *domain.AggregateReport {
	return AggregateWithPolicy(records, spec, DefaultMissingDatePolicy)
}

// AggregateWithPolicy is Aggregate with an explicit missing-date policy.
func AggregateWithPolicy(records []domain.MemberRecord, spec domain.FilterSpec, policy MissingDatePolicy) *domain.AggregateReport {
	filtered := make([]domain.MemberRecord, 0, len(records))
	for _, r := range records {
		if matches(r, spec, policy) {
			filtered = append(filtered, r)
		}
	}

	sortMembers(filtered, spec.SortBy, spec.EffectiveSortOrder())

	return summarize(filtered)
}

// matches evaluates the filters in their fixed order: level, date range,
// commission range, volume range.
func matches(r domain.MemberRecord, spec domain.FilterSpec, policy MissingDatePolicy) bool {
	if spec.Level != nil && r.Level != *spec.Level {
		return false
	}

	if spec.HasDateBounds() {
		if r.LastTransactionDate == nil {
			if policy == ExcludeMissingDates {
				return false
			}
		} else {
			if spec.StartDate != nil && r.LastTransactionDate.Before(*spec.StartDate) {
				return false
			}
			if spec.EndDate != nil && r.LastTransactionDate.After(*spec.EndDate) {
				return false
			}
		}
	}

	if !inRange(r.TotalCommission, spec.MinCommission, spec.MaxCommission) {
		return false
	}
	return inRange(r.TotalVolume, spec.MinVolume, spec.MaxVolume)
}

func inRange(v decimal.Decimal, lo, hi *decimal.Decimal) bool {
	if lo != nil && v.LessThan(*lo) {
		return false
	}
	if hi != nil && v.GreaterThan(*hi) {
		return false
	}
	return true
}

// sortMembers orders members in place. Equal keys keep their relative
// order in both directions.
func sortMembers(members []domain.MemberRecord, by domain.SortField, order domain.SortOrder) {
	cmp := comparator(by)
	if cmp == nil {
		return
	}
	if order == domain.SortAsc {
		sort.SliceStable(members, func(i, j int) bool { return cmp(members[i], members[j]) < 0 })
		return
	}
	sort.SliceStable(members, func(i, j int) bool { return cmp(members[i], members[j]) > 0 })
}

func comparator(by domain.SortField) func(a, b domain.MemberRecord) int {
	switch by {
	case domain.SortByCommission:
		return func(a, b domain.MemberRecord) int { return a.TotalCommission.Cmp(b.TotalCommission) }
	case domain.SortByVolume:
		return func(a, b domain.MemberRecord) int { return a.TotalVolume.Cmp(b.TotalVolume) }
	case domain.SortByTransactions:
		return func(a, b domain.MemberRecord) int { return compareInt(a.TotalTransactions, b.TotalTransactions) }
	case domain.SortByLevel:
		return func(a, b domain.MemberRecord) int { return compareInt(int64(a.Level), int64(b.Level)) }
	}
	return nil
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func summarize(members []domain.MemberRecord) *domain.AggregateReport {
	report := &domain.AggregateReport{
		TotalMembers:          len(members),
		TotalCommissionEarned: decimal.Zero,
		TotalVolume:           decimal.Zero,
		Stats:                 make(map[int]domain.LevelAggregate),
		MembersByLevel:        make(map[int]int),
		DetailedMembers:       members,
	}

	for _, m := range members {
		report.TotalCommissionEarned = report.TotalCommissionEarned.Add(m.TotalCommission)
		report.TotalVolume = report.TotalVolume.Add(m.TotalVolume)
		report.TotalTransactions += m.TotalTransactions

		agg, ok := report.Stats[m.Level]
		if !ok {
			agg = domain.LevelAggregate{TotalCommission: decimal.Zero, TotalVolume: decimal.Zero}
		}
		agg.Count++
		agg.TotalCommission = agg.TotalCommission.Add(m.TotalCommission)
		agg.TotalVolume = agg.TotalVolume.Add(m.TotalVolume)
		agg.TotalTransactions += m.TotalTransactions
		report.Stats[m.Level] = agg
		report.MembersByLevel[m.Level] = agg.Count
	}

	return report
}

// Levels returns the levels present in a report in ascending order.
func Levels(report *domain.AggregateReport) []int {
	levels := make([]int, 0, len(report.Stats))
	for level := range report.Stats {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}
