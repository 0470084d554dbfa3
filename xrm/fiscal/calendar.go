// Package fiscal maps points in time to (period, fiscal year) under a
// configurable fiscal calendar. Only the condition evaluator consumes it.
package fiscal

import (
	"time"

	"github.com/rnwood/Fake4Dataverse-sub000/config"
	"github.com/rnwood/Fake4Dataverse-sub000/errors"
)

// PeriodType is the subdivision of the 12-month fiscal year.
type PeriodType string

const (
	Monthly    PeriodType = "monthly"
	Quarterly  PeriodType = "quarterly"
	SemiAnnual PeriodType = "semiannual"
	Annual     PeriodType = "annual"
)

// PeriodsPerYear returns how many periods the type divides a year into.
func (p PeriodType) PeriodsPerYear() int {
	switch p {
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case SemiAnnual:
		return 2
	case Annual:
		return 1
	default:
		return 0
	}
}

// YearDisplay selects which calendar year names a fiscal year.
type YearDisplay string

const (
	// DisplayStartYear names the fiscal year after the calendar year in
	// which it starts (the platform default).
	DisplayStartYear YearDisplay = "start"
	// DisplayEndYear names the fiscal year after the calendar year in
	// which it ends.
	DisplayEndYear YearDisplay = "end"
)

// Calendar is one fiscal calendar configuration. The zero value is not
// usable; construct with Default or New.
type Calendar struct {
	StartMonth  time.Month
	StartDay    int
	PeriodType  PeriodType
	YearDisplay YearDisplay
}

// Default returns the calendar used when nothing is configured:
// calendar-year quarters named after their start year.
func Default() Calendar {
	return Calendar{
		StartMonth:  time.January,
		StartDay:    1,
		PeriodType:  Quarterly,
		YearDisplay: DisplayStartYear,
	}
}

// New validates and builds a calendar.
func New(startMonth time.Month, startDay int, periodType PeriodType, display YearDisplay) (Calendar, error) {
	if startMonth < time.January || startMonth > time.December {
		return Calendar{}, errors.Newf("invalid fiscal start month %d", startMonth)
	}
	if startDay < 1 || startDay > 31 {
		return Calendar{}, errors.Newf("invalid fiscal start day %d", startDay)
	}
	if periodType.PeriodsPerYear() == 0 {
		return Calendar{}, errors.Newf("unknown fiscal period type %q", periodType)
	}
	if display != DisplayStartYear && display != DisplayEndYear {
		return Calendar{}, errors.Newf("unknown fiscal year display %q", display)
	}
	return Calendar{
		StartMonth:  startMonth,
		StartDay:    startDay,
		PeriodType:  periodType,
		YearDisplay: display,
	}, nil
}

// FromConfig builds a calendar from the loaded configuration section.
func FromConfig(cfg config.FiscalConfig) (Calendar, error) {
	return New(time.Month(cfg.StartMonth), cfg.StartDay, PeriodType(cfg.PeriodType), YearDisplay(cfg.YearDisplay))
}

// yearStart returns the start of the fiscal year containing t.
func (c Calendar) yearStart(t time.Time) time.Time {
	start := time.Date(t.Year(), c.StartMonth, c.StartDay, 0, 0, 0, 0, t.Location())
	if t.Before(start) {
		start = time.Date(t.Year()-1, c.StartMonth, c.StartDay, 0, 0, 0, 0, t.Location())
	}
	return start
}

// PeriodOf maps a point in time to its fiscal period (1-based) and fiscal
// year number. Periods are buckets of 12/PeriodsPerYear calendar months
// counted from the fiscal year start.
func (c Calendar) PeriodOf(t time.Time) (period, fiscalYear int) {
	start := c.yearStart(t)

	months := (t.Year()-start.Year())*12 + int(t.Month()-start.Month())
	if t.Day() < start.Day() {
		months--
	}

	bucketSize := 12 / c.PeriodType.PeriodsPerYear()
	period = months/bucketSize + 1

	fiscalYear = start.Year()
	if c.YearDisplay == DisplayEndYear && !(c.StartMonth == time.January && c.StartDay == 1) {
		fiscalYear = start.Year() + 1
	}
	return period, fiscalYear
}

// ThisPeriod returns the fiscal period and year containing now.
func (c Calendar) ThisPeriod(now time.Time) (period, fiscalYear int) {
	return c.PeriodOf(now)
}

// LastPeriod returns the fiscal period immediately before the one
// containing now, wrapping across the fiscal-year boundary.
func (c Calendar) LastPeriod(now time.Time) (period, fiscalYear int) {
	p, y := c.PeriodOf(now)
	return c.Shift(p, y, -1)
}

// NextPeriod returns the fiscal period immediately after the one
// containing now, wrapping across the fiscal-year boundary.
func (c Calendar) NextPeriod(now time.Time) (period, fiscalYear int) {
	p, y := c.PeriodOf(now)
	return c.Shift(p, y, 1)
}

// Shift moves a (period, fiscalYear) pair by delta periods, wrapping
// across fiscal-year boundaries.
func (c Calendar) Shift(period, fiscalYear, delta int) (int, int) {
	per := c.PeriodType.PeriodsPerYear()
	idx := (fiscalYear * per) + (period - 1) + delta
	return idx%per + 1, idx / per
}

// Compare orders two (period, fiscalYear) pairs: -1 when a is earlier,
// 0 when equal, 1 when a is later.
func Compare(periodA, yearA, periodB, yearB int) int {
	if yearA != yearB {
		if yearA < yearB {
			return -1
		}
		return 1
	}
	if periodA != periodB {
		if periodA < periodB {
			return -1
		}
		return 1
	}
	return 0
}
