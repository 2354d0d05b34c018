package datepicker

import "fmt"

// InitPayload is the payload of ActionInitState. A nil CalendarDate starts
// the calendar at the current month without a selection.
type InitPayload struct {
	CalendarDate *Date `yaml:"calendarDate,omitempty"`
	CalendarTime *Time `yaml:"calendarTime,omitempty"`
}

// CalendarPatch is the payload of ActionChangeCalendarCurrent and
// ActionChangeCalendarSelected. Only the parts that are set change; without
// a previous selection ActionChangeCalendarSelected needs all three.
type CalendarPatch struct {
	Year     *int     `yaml:"year,omitempty"`
	Month    *int     `yaml:"month,omitempty"`
	Day      *int     `yaml:"day,omitempty"`
	ViewMode ViewMode `yaml:"viewMode,omitempty"`
}

// PatchFrom returns a patch setting every part of d.
func PatchFrom(d Date) CalendarPatch {
	return CalendarPatch{Year: Int(d.Year), Month: Int(d.Month), Day: Int(d.Day)}
}

// ViewModePayload is the payload of ActionChangeCalendarViewMode.
type ViewModePayload struct {
	ViewMode ViewMode `yaml:"viewMode"`
}

// ValueChangePayload is the payload of ActionValueChange.
type ValueChangePayload struct {
	Type ValueChangeType `yaml:"type"`
}

// Int returns a pointer to v, for building patches.
func Int(v int) *int {
	return &v
}

// NewPayload returns a pointer to an empty payload of the type the named
// action expects, ready to be decoded into.
func NewPayload(action string) (any, bool) {
	switch action {
	case ActionInitState:
		return &InitPayload{}, true
	case ActionChangeViewFeatureConfig:
		return &FeatureConfig{}, true
	case ActionChangeCalendarViewMode:
		return &ViewModePayload{}, true
	case ActionChangeCalendarCurrent, ActionChangeCalendarSelected:
		return &CalendarPatch{}, true
	case ActionChangeTimeSelected:
		return &Time{}, true
	case ActionValueChange:
		return &ValueChangePayload{}, true
	case ActionSetDisableRules:
		return &DisableRules{}, true
	default:
		return nil, false
	}
}

// payloadAs accepts a payload given either as P or as *P.
func payloadAs[P any](action string, payload any) (P, error) {
	var zero P
	switch p := payload.(type) {
	case P:
		return p, nil
	case *P:
		if p == nil {
			return zero, nil
		}
		return *p, nil
	case nil:
		return zero, nil
	default:
		return zero, fmt.Errorf("%s: unexpected payload type %T", action, payload)
	}
}
