package datepicker

import (
	"slices"

	"github.com/dshills/storekit/internal/store"
)

// CalendarViewMode selects the calendar view mode.
func CalendarViewMode(s State) ViewMode {
	return s.CalendarViewMode
}

// CalendarCurrent selects the displayed date, or the zero Date if unset.
func CalendarCurrent(s State) Date {
	if s.CalendarCurrent == nil {
		return Date{}
	}
	return *s.CalendarCurrent
}

// CalendarSelected selects the selected date. It is nil without a selection.
func CalendarSelected(s State) *Date {
	return s.CalendarSelected
}

// TimeSelected selects the selected time. It is nil without a selection.
func TimeSelected(s State) *Time {
	return s.TimeSelected
}

// CalendarCurrentYear selects the year of the displayed date.
func CalendarCurrentYear(s State) int {
	return CalendarCurrent(s).Year
}

// ValueChange selects the last value change type.
func ValueChange(s State) ValueChangeType {
	return s.ValueChange
}

// RulesOf selects the disable rules.
func RulesOf(s State) DisableRules {
	return s.DisableRules
}

var selectors = map[string]func(State) any{
	"calendarViewMode":    func(s State) any { return CalendarViewMode(s) },
	"calendarCurrent":     func(s State) any { return CalendarCurrent(s) },
	"calendarSelected":    func(s State) any { return CalendarSelected(s) },
	"timeSelected":        func(s State) any { return TimeSelected(s) },
	"calendarCurrentYear": func(s State) any { return CalendarCurrentYear(s) },
	"valueChange":         func(s State) any { return ValueChange(s) },
	"disableRules":        func(s State) any { return RulesOf(s) },
}

// Selector returns the named selector with its result boxed, for callers
// that pick selectors at runtime.
func Selector(name string) (func(State) any, bool) {
	fn, ok := selectors[name]
	return fn, ok
}

// SelectorNames returns the names accepted by Selector, sorted.
func SelectorNames() []string {
	names := make([]string, 0, len(selectors))
	for name := range selectors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ViewModes returns the feed of calendar view modes.
func (s *Store) ViewModes() store.Feed[ViewMode] {
	return store.Select(s.Store, CalendarViewMode)
}

// Current returns the feed of displayed dates.
func (s *Store) Current() store.Feed[Date] {
	return store.Select(s.Store, CalendarCurrent)
}

// Selected returns the feed of selected dates, compared by value.
func (s *Store) Selected() store.Feed[*Date] {
	return store.SelectDeep(s.Store, CalendarSelected)
}

// Times returns the feed of selected times.
func (s *Store) Times() store.Feed[*Time] {
	return store.SelectDeep(s.Store, TimeSelected)
}

// Years returns the feed of displayed years.
func (s *Store) Years() store.Feed[int] {
	return store.Select(s.Store, CalendarCurrentYear)
}

// ValueChanges returns the feed of value change types.
func (s *Store) ValueChanges() store.Feed[ValueChangeType] {
	return store.Select(s.Store, ValueChange)
}

// Rules returns the feed of disable rules.
func (s *Store) Rules() store.Feed[DisableRules] {
	return store.SelectDeep(s.Store, RulesOf)
}
