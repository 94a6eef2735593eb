package downline

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bgref/internal/domain"
)

// Query keys accepted by ParseFilter.
const (
	KeyStartDate     = "startDate"
	KeyEndDate       = "endDate"
	KeyMinCommission = "minCommission"
	KeyMaxCommission = "maxCommission"
	KeyMinVolume     = "minVolume"
	KeyMaxVolume     = "maxVolume"
	KeyLevel         = "level"
	KeySortBy        = "sortBy"
	KeySortOrder     = "sortOrder"
)

// MalformedBoundPolicy decides how ParseFilter treats a value it cannot parse.
type MalformedBoundPolicy int

const (
	// TreatMalformedAsAbsent drops the bound, as if the key were not sent.
	TreatMalformedAsAbsent MalformedBoundPolicy = iota
)

// DefaultMalformedBoundPolicy is the policy ParseFilter applies.
const DefaultMalformedBoundPolicy = TreatMalformedAsAbsent

const dateLayout = "2006-01-02"

// ParseFilter converts form-style string input into a typed FilterSpec.
// Blank values are absent. Values that do not parse are absent too and their
// keys are returned in ignored so callers can surface them.
func ParseFilter(values url.Values) (spec domain.FilterSpec, ignored []string) {
	get := func(key string) (string, bool) {
		v := strings.TrimSpace(values.Get(key))
		return v, v != ""
	}

	decimalBound := func(key string) *decimal.Decimal {
		raw, ok := get(key)
		if !ok {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			ignored = append(ignored, key)
			return nil
		}
		return &d
	}

	dateBound := func(key string, endOfDay bool) *time.Time {
		raw, ok := get(key)
		if !ok {
			return nil
		}
		t, err := parseDate(raw, endOfDay)
		if err != nil {
			ignored = append(ignored, key)
			return nil
		}
		return &t
	}

	spec.StartDate = dateBound(KeyStartDate, false)
	spec.EndDate = dateBound(KeyEndDate, true)
	spec.MinCommission = decimalBound(KeyMinCommission)
	spec.MaxCommission = decimalBound(KeyMaxCommission)
	spec.MinVolume = decimalBound(KeyMinVolume)
	spec.MaxVolume = decimalBound(KeyMaxVolume)

	if raw, ok := get(KeyLevel); ok {
		if level, err := strconv.Atoi(raw); err == nil {
			spec.Level = &level
		} else {
			ignored = append(ignored, KeyLevel)
		}
	}

	if raw, ok := get(KeySortBy); ok {
		if by := domain.SortField(strings.ToLower(raw)); by.Valid() {
			spec.SortBy = by
		} else {
			ignored = append(ignored, KeySortBy)
		}
	}

	if raw, ok := get(KeySortOrder); ok {
		switch order := domain.SortOrder(strings.ToLower(raw)); order {
		case domain.SortAsc, domain.SortDesc:
			spec.SortOrder = order
		default:
			ignored = append(ignored, KeySortOrder)
		}
	}

	return spec, ignored
}

// parseDate accepts RFC3339 timestamps or yyyy-MM-dd dates. A date-only end
// bound covers the whole UTC day.
func parseDate(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// Encode renders spec back into query form. ParseFilter(Encode(s)) yields s
// for every spec ParseFilter can produce.
func Encode(spec domain.FilterSpec) url.Values {
	v := url.Values{}
	if spec.StartDate != nil {
		v.Set(KeyStartDate, spec.StartDate.Format(time.RFC3339Nano))
	}
	if spec.EndDate != nil {
		v.Set(KeyEndDate, spec.EndDate.Format(time.RFC3339Nano))
	}
	setDecimal := func(key string, d *decimal.Decimal) {
		if d != nil {
			v.Set(key, d.String())
		}
	}
	setDecimal(KeyMinCommission, spec.MinCommission)
	setDecimal(KeyMaxCommission, spec.MaxCommission)
	setDecimal(KeyMinVolume, spec.MinVolume)
	setDecimal(KeyMaxVolume, spec.MaxVolume)
	if spec.Level != nil {
		v.Set(KeyLevel, strconv.Itoa(*spec.Level))
	}
	if spec.SortBy != "" {
		v.Set(KeySortBy, string(spec.SortBy))
	}
	if spec.SortOrder != "" {
		v.Set(KeySortOrder, string(spec.SortOrder))
	}
	return v
}

// Describe flattens spec into log fields; unset bounds are omitted.
func Describe(spec domain.FilterSpec) map[string]interface{} {
	fields := make(map[string]interface{})
	for key, vals := range Encode(spec) {
		fields[key] = vals[0]
	}
	return fields
}
