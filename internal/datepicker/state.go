package datepicker

import (
	"fmt"
	"maps"
)

// ViewMode is the granularity the calendar is showing.
type ViewMode string

// Calendar view modes.
const (
	ViewModeDay   ViewMode = "day"
	ViewModeMonth ViewMode = "month"
	ViewModeYear  ViewMode = "year"
)

// ParseViewMode validates a view mode name.
func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(s); m {
	case ViewModeDay, ViewModeMonth, ViewModeYear:
		return m, nil
	default:
		return "", fmt.Errorf("unknown view mode %q", s)
	}
}

// ValueChangeType tells which part of the value the user changed last.
type ValueChangeType string

// Value change types.
const (
	ValueChangeDate    ValueChangeType = "date"
	ValueChangeTime    ValueChangeType = "time"
	ValueChangeConfirm ValueChangeType = "confirm"
	ValueChangeClear   ValueChangeType = "clear"
)

// FeatureConfig switches optional parts of the picker on or off,
// for example "showTime" or "showWeek".
type FeatureConfig map[string]bool

// State is the date picker view state. The zero value is the cleared state.
type State struct {
	ViewFeatureConfig FeatureConfig   `yaml:"viewFeatureConfig,omitempty"`
	CalendarViewMode  ViewMode        `yaml:"calendarViewMode,omitempty"`
	CalendarCurrent   *Date           `yaml:"calendarCurrent,omitempty"`
	CalendarSelected  *Date           `yaml:"calendarSelected,omitempty"`
	TimeSelected      *Time           `yaml:"timeSelected,omitempty"`
	ValueChange       ValueChangeType `yaml:"valueChange,omitempty"`
	DisableRules      DisableRules    `yaml:"disableRules,omitempty"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	if s.ViewFeatureConfig != nil {
		out.ViewFeatureConfig = maps.Clone(s.ViewFeatureConfig)
	}
	if s.CalendarCurrent != nil {
		d := *s.CalendarCurrent
		out.CalendarCurrent = &d
	}
	if s.CalendarSelected != nil {
		d := *s.CalendarSelected
		out.CalendarSelected = &d
	}
	if s.TimeSelected != nil {
		t := *s.TimeSelected
		out.TimeSelected = &t
	}
	out.DisableRules = s.DisableRules.clone()
	return out
}
