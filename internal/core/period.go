package core

import (
	"fmt"
	"strings"
	"time"
)

// Granularity selects the period size for balance history.
type Granularity string

const (
	Daily   Granularity = "day"
	Weekly  Granularity = "week"
	Monthly Granularity = "month"
)

func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(s) {
	case "day", "daily":
		return Daily, nil
	case "week", "weekly":
		return Weekly, nil
	case "month", "monthly", "":
		return Monthly, nil
	default:
		return Monthly, fmt.Errorf("unknown granularity %q", s)
	}
}

// GroupBy selects the period bucket size for summaries.
type GroupBy string

const (
	GroupWeek  GroupBy = "week"
	GroupMonth GroupBy = "month"
	GroupYear  GroupBy = "year"
	GroupAll   GroupBy = "all"
)

func ParseGroupBy(s string) (GroupBy, error) {
	switch strings.ToLower(s) {
	case "week":
		return GroupWeek, nil
	case "month", "":
		return GroupMonth, nil
	case "year":
		return GroupYear, nil
	case "all":
		return GroupAll, nil
	default:
		return GroupMonth, fmt.Errorf("unknown group_by %q", s)
	}
}

// CategoryType selects which category column summaries bucket on.
type CategoryType string

const (
	PrimaryCategory  CategoryType = "primary"
	DetailedCategory CategoryType = "detailed"
)

func ParseCategoryType(s string) (CategoryType, error) {
	switch strings.ToLower(s) {
	case "primary", "":
		return PrimaryCategory, nil
	case "detailed":
		return DetailedCategory, nil
	default:
		return PrimaryCategory, fmt.Errorf("unknown category type %q", s)
	}
}

// Period is a closed day-granularity interval.
type Period struct {
	Start time.Time
	End   time.Time
}

// PeriodOf returns the period containing d: the calendar month, the
// Monday-to-Sunday week, or the single day.
func (g Granularity) PeriodOf(d time.Time) Period {
	d = Day(d)
	switch g {
	case Monthly:
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 1, -1)}
	case Weekly:
		offset := (int(d.Weekday()) + 6) % 7 // days since Monday
		start := d.AddDate(0, 0, -offset)
		return Period{Start: start, End: start.AddDate(0, 0, 6)}
	default:
		return Period{Start: d, End: d}
	}
}

// Next returns the period immediately following p.
func (g Granularity) Next(p Period) Period {
	return g.PeriodOf(p.End.AddDate(0, 0, 1))
}

// Label formats the period key: 2006-01-02 for days, 2006-01 for months,
// ISO year-week for weeks.
func (g Granularity) Label(p Period) string {
	switch g {
	case Monthly:
		return p.Start.Format("2006-01")
	case Weekly:
		year, week := p.Start.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return p.Start.Format(DateFormat)
	}
}

// DefaultStart returns the default window start for a given end date:
// 12 months back for months (snapped to the first), 3 months back for
// weeks, 1 month back for days.
func (g Granularity) DefaultStart(end time.Time) time.Time {
	end = Day(end)
	switch g {
	case Monthly:
		return time.Date(end.Year()-1, end.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Weekly:
		return end.AddDate(0, -3, 0)
	default:
		return end.AddDate(0, -1, 0)
	}
}

// BucketKey returns the summary bucket key for a transaction date.
func (gb GroupBy) BucketKey(d time.Time) string {
	switch gb {
	case GroupWeek:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GroupMonth:
		return d.Format("2006-01")
	case GroupYear:
		return d.Format("2006")
	default:
		return "all"
	}
}
