package datepicker

import (
	"fmt"
	"slices"
	"time"
)

// Date is a calendar date with a 1-based month.
type Date struct {
	Year  int `yaml:"year"`
	Month int `yaml:"month"`
	Day   int `yaml:"day"`
}

// NormalizeDate builds a Date from possibly out-of-range parts, rolling
// months and days over into the neighbouring month or year.
func NormalizeDate(year, month, day int) Date {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return DateOf(t)
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// Time returns the start of the date in UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is later than other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time is a time of day.
type Time struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

// String returns the time as HH:MM.
func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Valid reports whether the hour and minute are in range.
func (t Time) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// DisableRules restrict which dates can be selected. A nil bound is open.
type DisableRules struct {
	MinDate  *Date         `yaml:"minDate,omitempty"`
	MaxDate  *Date         `yaml:"maxDate,omitempty"`
	Weekdays []time.Weekday `yaml:"weekdays,omitempty"`
}

// Merge returns r overlaid with the rules set in other.
func (r DisableRules) Merge(other DisableRules) DisableRules {
	out := r.clone()
	if other.MinDate != nil {
		d := *other.MinDate
		out.MinDate = &d
	}
	if other.MaxDate != nil {
		d := *other.MaxDate
		out.MaxDate = &d
	}
	if other.Weekdays != nil {
		out.Weekdays = slices.Clone(other.Weekdays)
	}
	return out
}

// Disabled reports whether d falls outside the rules.
func (r DisableRules) Disabled(d Date) bool {
	if r.MinDate != nil && d.Before(*r.MinDate) {
		return true
	}
	if r.MaxDate != nil && d.After(*r.MaxDate) {
		return true
	}
	return slices.Contains(r.Weekdays, d.Time().Weekday())
}

// IsZero reports whether no rule is set.
func (r DisableRules) IsZero() bool {
	return r.MinDate == nil && r.MaxDate == nil && len(r.Weekdays) == 0
}

func (r DisableRules) clone() DisableRules {
	out := DisableRules{Weekdays: slices.Clone(r.Weekdays)}
	if r.MinDate != nil {
		d := *r.MinDate
		out.MinDate = &d
	}
	if r.MaxDate != nil {
		d := *r.MaxDate
		out.MaxDate = &d
	}
	return out
}
