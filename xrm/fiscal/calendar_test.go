package fiscal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnwood/Fake4Dataverse-sub000/config"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestJulyQuarterlyCalendar(t *testing.T) {
	cal, err := New(time.July, 1, Quarterly, DisplayStartYear)
	require.NoError(t, err)

	testCases := []struct {
		name       string
		t          time.Time
		period     int
		fiscalYear int
	}{
		{"start of fiscal year", date(2024, time.July, 1), 1, 2024},
		{"mid first period", date(2024, time.July, 15), 1, 2024},
		{"second period", date(2024, time.October, 1), 2, 2024},
		{"third period", date(2025, time.January, 10), 3, 2024},
		{"last period", date(2025, time.April, 30), 4, 2024},
		{"day before new fiscal year", date(2025, time.June, 30), 4, 2024},
		{"next fiscal year", date(2025, time.July, 1), 1, 2025},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, fy := cal.PeriodOf(tc.t)
			assert.Equal(t, tc.period, p)
			assert.Equal(t, tc.fiscalYear, fy)
		})
	}
}

func TestDefaultCalendarYearQuarters(t *testing.T) {
	cal := Default()

	p, fy := cal.PeriodOf(date(2025, time.February, 14))
	assert.Equal(t, 1, p)
	assert.Equal(t, 2025, fy)

	p, fy = cal.PeriodOf(date(2025, time.December, 31))
	assert.Equal(t, 4, p)
	assert.Equal(t, 2025, fy)
}

func TestPeriodTypes(t *testing.T) {
	july15 := date(2024, time.August, 20)

	monthly, _ := New(time.January, 1, Monthly, DisplayStartYear)
	p, _ := monthly.PeriodOf(july15)
	assert.Equal(t, 8, p)

	semi, _ := New(time.January, 1, SemiAnnual, DisplayStartYear)
	p, _ = semi.PeriodOf(july15)
	assert.Equal(t, 2, p)

	annual, _ := New(time.January, 1, Annual, DisplayStartYear)
	p, _ = annual.PeriodOf(july15)
	assert.Equal(t, 1, p)
}

func TestMidMonthStartDay(t *testing.T) {
	cal, err := New(time.April, 6, Quarterly, DisplayStartYear)
	require.NoError(t, err)

	// April 5 is still the closing day of the previous fiscal year
	p, fy := cal.PeriodOf(date(2025, time.April, 5))
	assert.Equal(t, 4, p)
	assert.Equal(t, 2024, fy)

	p, fy = cal.PeriodOf(date(2025, time.April, 6))
	assert.Equal(t, 1, p)
	assert.Equal(t, 2025, fy)
}

func TestYearDisplayEnd(t *testing.T) {
	cal, err := New(time.July, 1, Quarterly, DisplayEndYear)
	require.NoError(t, err)

	// the fiscal year starting July 2024 ends mid-2025
	_, fy := cal.PeriodOf(date(2024, time.August, 1))
	assert.Equal(t, 2025, fy)

	// a calendar-year fiscal year ends in its own start year
	calJan, err := New(time.January, 1, Quarterly, DisplayEndYear)
	require.NoError(t, err)
	_, fy = calJan.PeriodOf(date(2024, time.August, 1))
	assert.Equal(t, 2024, fy)
}

func TestShiftWrapsAcrossYears(t *testing.T) {
	cal := Default()

	p, fy := cal.Shift(4, 2024, 1)
	assert.Equal(t, 1, p)
	assert.Equal(t, 2025, fy)

	p, fy = cal.Shift(1, 2024, -1)
	assert.Equal(t, 4, p)
	assert.Equal(t, 2023, fy)

	p, fy = cal.Shift(2, 2024, 1)
	assert.Equal(t, 3, p)
	assert.Equal(t, 2024, fy)
}

func TestRelativePeriods(t *testing.T) {
	cal, err := New(time.July, 1, Quarterly, DisplayStartYear)
	require.NoError(t, err)
	now := date(2024, time.August, 15)

	p, fy := cal.ThisPeriod(now)
	assert.Equal(t, 1, p)
	assert.Equal(t, 2024, fy)

	p, fy = cal.LastPeriod(now)
	assert.Equal(t, 4, p)
	assert.Equal(t, 2023, fy)

	p, fy = cal.NextPeriod(now)
	assert.Equal(t, 2, p)
	assert.Equal(t, 2024, fy)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(4, 2023, 1, 2024))
	assert.Equal(t, 1, Compare(2, 2024, 1, 2024))
	assert.Equal(t, 0, Compare(3, 2024, 3, 2024))
}

func TestNewValidation(t *testing.T) {
	_, err := New(0, 1, Quarterly, DisplayStartYear)
	assert.Error(t, err)
	_, err = New(time.January, 0, Quarterly, DisplayStartYear)
	assert.Error(t, err)
	_, err = New(time.January, 1, "weekly", DisplayStartYear)
	assert.Error(t, err)
	_, err = New(time.January, 1, Quarterly, "middle")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cal, err := FromConfig(config.FiscalConfig{
		StartMonth:  7,
		StartDay:    1,
		PeriodType:  "quarterly",
		YearDisplay: "start",
	})
	require.NoError(t, err)

	p, fy := cal.PeriodOf(date(2024, time.July, 15))
	assert.Equal(t, 1, p)
	assert.Equal(t, 2024, fy)

	_, err = FromConfig(config.FiscalConfig{StartMonth: 13})
	assert.Error(t, err)
}
