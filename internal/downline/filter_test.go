package downline

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgref/internal/domain"
)

func TestParseFilter_AllKeys(t *testing.T) {
	spec, ignored := ParseFilter(url.Values{
		KeyStartDate:     {"2024-01-15"},
		KeyEndDate:       {"2024-01-18"},
		KeyMinCommission: {"10.5"},
		KeyMaxCommission: {"200"},
		KeyMinVolume:     {" 0 "},
		KeyMaxVolume:     {"5000"},
		KeyLevel:         {"2"},
		KeySortBy:        {"Volume"},
		KeySortOrder:     {"ASC"},
	})

	assert.Empty(t, ignored)
	require.NotNil(t, spec.StartDate)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *spec.StartDate)
	require.NotNil(t, spec.EndDate)
	assert.Equal(t, time.Date(2024, 1, 18, 23, 59, 59, 999999999, time.UTC), *spec.EndDate)
	assert.Equal(t, "10.5", spec.MinCommission.String())
	assert.Equal(t, "200", spec.MaxCommission.String())
	require.NotNil(t, spec.MinVolume)
	assert.True(t, spec.MinVolume.IsZero())
	assert.Equal(t, "5000", spec.MaxVolume.String())
	assert.Equal(t, 2, *spec.Level)
	assert.Equal(t, domain.SortByVolume, spec.SortBy)
	assert.Equal(t, domain.SortAsc, spec.SortOrder)
}

func TestParseFilter_BlankValuesAreAbsent(t *testing.T) {
	spec, ignored := ParseFilter(url.Values{
		KeyStartDate:     {""},
		KeyMinCommission: {"   "},
		KeyLevel:         {""},
		KeySortBy:        {""},
	})

	assert.Empty(t, ignored)
	assert.Equal(t, domain.FilterSpec{}, spec)
}

func TestParseFilter_MalformedValuesAreAbsent(t *testing.T) {
	spec, ignored := ParseFilter(url.Values{
		KeyStartDate:     {"yesterday"},
		KeyEndDate:       {"2024-13-45"},
		KeyMinCommission: {"abc"},
		KeyMaxCommission: {"1e2x"},
		KeyMinVolume:     {"--1"},
		KeyMaxVolume:     {"NaN"},
		KeyLevel:         {"two"},
		KeySortBy:        {"nickname"},
		KeySortOrder:     {"up"},
	})

	assert.Equal(t, domain.FilterSpec{}, spec)
	assert.ElementsMatch(t, []string{
		KeyStartDate, KeyEndDate, KeyMinCommission, KeyMaxCommission,
		KeyMinVolume, KeyMaxVolume, KeyLevel, KeySortBy, KeySortOrder,
	}, ignored)
	assert.Equal(t, TreatMalformedAsAbsent, DefaultMalformedBoundPolicy)
}

func TestParseFilter_RFC3339Dates(t *testing.T) {
	spec, ignored := ParseFilter(url.Values{
		KeyStartDate: {"2024-01-16T11:00:00+07:00"},
		KeyEndDate:   {"2024-01-17T12:00:00Z"},
	})

	assert.Empty(t, ignored)
	assert.True(t, spec.StartDate.Equal(time.Date(2024, 1, 16, 4, 0, 0, 0, time.UTC)))
	assert.True(t, spec.EndDate.Equal(time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)))
}

func TestParseFilter_DateOnlyEndCoversWholeDay(t *testing.T) {
	spec, _ := ParseFilter(url.Values{KeyEndDate: {"2024-01-18"}})

	report := Aggregate(fourMembers(), spec)

	assert.Equal(t, 4, report.TotalMembers, "record at 13:00 on the end date must be included")
}

func TestEncode_RoundTrip(t *testing.T) {
	original, _ := ParseFilter(url.Values{
		KeyStartDate:     {"2024-01-15"},
		KeyEndDate:       {"2024-01-18"},
		KeyMinCommission: {"0"},
		KeyMaxVolume:     {"1234.5678"},
		KeyLevel:         {"3"},
		KeySortBy:        {"transactions"},
		KeySortOrder:     {"desc"},
	})

	decoded, ignored := ParseFilter(Encode(original))

	assert.Empty(t, ignored)
	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribe_OmitsUnsetBounds(t *testing.T) {
	spec, _ := ParseFilter(url.Values{KeyLevel: {"1"}, KeySortBy: {"commission"}})

	fields := Describe(spec)

	assert.Equal(t, map[string]interface{}{KeyLevel: "1", KeySortBy: "commission"}, fields)
}
