// Package datepicker provides the view-state store behind a date picker.
//
// The store keeps the month being displayed (calendar current), the selected
// date and time, the calendar view mode, feature flags and the rules that
// disable dates. Every change goes through one of the registered actions:
//
//	dp := datepicker.New()
//	day := store.Select(dp.Store, func(s datepicker.State) int {
//	    return datepicker.CalendarCurrent(s).Day
//	})
//	dp.Dispatch(ctx, datepicker.ActionChangeCalendarCurrent, datepicker.CalendarPatch{Day: datepicker.Int(15)})
//
// Dates use 1-based months. Out-of-range months and days roll over the way
// time.Date normalizes them, so month 13 of 2024 is January 2025.
//
// Handlers never modify a published State in place; they clone the snapshot,
// change the clone and publish it.
package datepicker
