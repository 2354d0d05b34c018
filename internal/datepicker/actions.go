package datepicker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/storekit/internal/store"
)

// Kind is the store kind of the date picker.
const Kind = "datepicker"

// Action names for the date picker store.
const (
	ActionInitState               = "initState"               // set current month, selection and time at once
	ActionChangeViewFeatureConfig = "changeViewFeatureConfig" // merge feature flags
	ActionChangeCalendarViewMode  = "changeCalendarViewMode"  // day, month or year view
	ActionChangeCalendarCurrent   = "changeCalendarCurrent"   // navigate the displayed month
	ActionChangeCalendarSelected  = "changeCalendarSelected"  // select a date
	ActionChangeTimeSelected      = "changeTimeSelected"      // select a time, nil clears it
	ActionValueChange             = "valueChange"             // record what changed last
	ActionSetDisableRules         = "setDisableRules"         // merge disable rules
)

// Errors returned by date picker actions.
var (
	// ErrDateDisabled is returned when selecting a date the disable rules exclude.
	ErrDateDisabled = errors.New("datepicker: date is disabled")

	// ErrIncompleteDate is returned when a selection leaves year, month or
	// day unset.
	ErrIncompleteDate = errors.New("datepicker: incomplete date")
)

// Actions is the action table shared by every date picker store.
var Actions = store.NewActions[State](Kind)

func init() {
	Actions.MustRegister(ActionInitState, "initState", initState)
	Actions.MustRegister(ActionChangeViewFeatureConfig, "changeViewFeatureConfig", changeViewFeatureConfig)
	Actions.MustRegister(ActionChangeCalendarViewMode, "changeCalendarViewMode", changeCalendarViewMode)
	Actions.MustRegister(ActionChangeCalendarCurrent, "changeCalendarCurrent", changeCalendarCurrent)
	Actions.MustRegister(ActionChangeCalendarSelected, "changeCalendarSelected", changeCalendarSelected)
	Actions.MustRegister(ActionChangeTimeSelected, "changeTimeSelected", changeTimeSelected)
	Actions.MustRegister(ActionValueChange, "valueChange", valueChange)
	Actions.MustRegister(ActionSetDisableRules, "setDisableRules", setDisableRules)
}

type clockKey struct{}

// WithClock returns a context whose handlers read the current date from now.
func WithClock(ctx context.Context, now func() time.Time) context.Context {
	return context.WithValue(ctx, clockKey{}, now)
}

func today(ctx context.Context) Date {
	if now, ok := ctx.Value(clockKey{}).(func() time.Time); ok && now != nil {
		return DateOf(now())
	}
	return DateOf(time.Now())
}

// initState selects the given date and time and moves the calendar to the
// first day of the selected month, or of the current month without a date.
func initState(ctx context.Context, s *store.Store[State], _ State, payload any) *store.Result {
	p, err := payloadAs[InitPayload](ActionInitState, payload)
	if err != nil {
		return store.Fail(err)
	}

	var start Date
	if p.CalendarDate != nil {
		start = *p.CalendarDate
		if err := s.Dispatch(ctx, ActionChangeCalendarSelected, PatchFrom(start)).Err(); err != nil {
			return store.Fail(err)
		}
	} else {
		start = today(ctx)
	}

	current := CalendarPatch{
		Year:     Int(start.Year),
		Month:    Int(start.Month),
		Day:      Int(1),
		ViewMode: ViewModeDay,
	}
	if err := s.Dispatch(ctx, ActionChangeCalendarCurrent, current).Err(); err != nil {
		return store.Fail(err)
	}

	if p.CalendarTime != nil {
		if err := s.Dispatch(ctx, ActionChangeTimeSelected, *p.CalendarTime).Err(); err != nil {
			return store.Fail(err)
		}
	}
	return store.Done()
}

func changeViewFeatureConfig(_ context.Context, s *store.Store[State], state State, payload any) *store.Result {
	if m, ok := payload.(map[string]bool); ok {
		payload = FeatureConfig(m)
	}
	p, err := payloadAs[FeatureConfig](ActionChangeViewFeatureConfig, payload)
	if err != nil {
		return store.Fail(err)
	}

	next := state.Clone()
	if next.ViewFeatureConfig == nil {
		next.ViewFeatureConfig = make(FeatureConfig, len(p))
	}
	for k, v := range p {
		next.ViewFeatureConfig[k] = v
	}
	s.Publish(next)
	return store.Done()
}

func changeCalendarViewMode(_ context.Context, s *store.Store[State], state State, payload any) *store.Result {
	var mode ViewMode
	switch p := payload.(type) {
	case ViewMode:
		mode = p
	case string:
		mode = ViewMode(p)
	default:
		vp, err := payloadAs[ViewModePayload](ActionChangeCalendarViewMode, payload)
		if err != nil {
			return store.Fail(err)
		}
		mode = vp.ViewMode
	}
	if _, err := ParseViewMode(string(mode)); err != nil {
		return store.Fail(err)
	}

	next := state.Clone()
	next.CalendarViewMode = mode
	s.Publish(next)
	return store.Done()
}

// changeCalendarCurrent moves the displayed calendar. A month change keeps
// the day and only normalizes year and month; a day change normalizes the
// whole date.
func changeCalendarCurrent(ctx context.Context, s *store.Store[State], state State, payload any) *store.Result {
	p, err := payloadAs[CalendarPatch](ActionChangeCalendarCurrent, payload)
	if err != nil {
		return store.Fail(err)
	}
	if p.ViewMode != "" {
		if _, err := ParseViewMode(string(p.ViewMode)); err != nil {
			return store.Fail(err)
		}
	}

	next := state.Clone()
	current := today(ctx)
	if next.CalendarCurrent != nil {
		current = *next.CalendarCurrent
	}

	if p.Year != nil {
		current.Year = *p.Year
	}
	if p.Month != nil {
		d := NormalizeDate(current.Year, *p.Month, 1)
		current.Year, current.Month = d.Year, d.Month
	}
	if p.Day != nil {
		current = NormalizeDate(current.Year, current.Month, *p.Day)
	}

	next.CalendarCurrent = &current
	if p.ViewMode != "" {
		next.CalendarViewMode = p.ViewMode
	}
	s.Publish(next)
	return store.Done()
}

func changeCalendarSelected(_ context.Context, s *store.Store[State], state State, payload any) *store.Result {
	p, err := payloadAs[CalendarPatch](ActionChangeCalendarSelected, payload)
	if err != nil {
		return store.Fail(err)
	}

	// Fields missing from the patch come from the previous selection.
	var year, month, day *int
	if prev := state.CalendarSelected; prev != nil {
		year, month, day = &prev.Year, &prev.Month, &prev.Day
	}
	year = cmp.Or(p.Year, year)
	month = cmp.Or(p.Month, month)
	day = cmp.Or(p.Day, day)
	if year == nil || month == nil || day == nil {
		return store.Failf("%w: %s needs year, month and day without a previous selection",
			ErrIncompleteDate, ActionChangeCalendarSelected)
	}
	selected := NormalizeDate(*year, *month, *day)

	if state.DisableRules.Disabled(selected) {
		return store.Fail(fmt.Errorf("%w: %s", ErrDateDisabled, selected))
	}

	next := state.Clone()
	next.CalendarSelected = &selected
	s.Publish(next)
	return store.Done()
}

func changeTimeSelected(_ context.Context, s *store.Store[State], state State, payload any) *store.Result {
	var selected *Time
	switch p := payload.(type) {
	case nil:
	case Time:
		selected = &p
	case *Time:
		if p != nil {
			t := *p
			selected = &t
		}
	default:
		return store.Failf("%s: unexpected payload type %T", ActionChangeTimeSelected, payload)
	}
	if selected != nil && !selected.Valid() {
		return store.Failf("%s: time %s out of range", ActionChangeTimeSelected, selected)
	}

	next := state.Clone()
	next.TimeSelected = selected
	s.Publish(next)
	return store.Done()
}

func valueChange(_ context.Context, s *store.Store[State], state State, payload any) *store.Result {
	var change ValueChangeType
	switch p := payload.(type) {
	case ValueChangeType:
		change = p
	case string:
		change = ValueChangeType(p)
	default:
		vp, err := payloadAs[ValueChangePayload](ActionValueChange, payload)
		if err != nil {
			return store.Fail(err)
		}
		change = vp.Type
	}

	next := state.Clone()
	next.ValueChange = change
	s.Publish(next)
	return store.Done()
}

func setDisableRules(_ context.Context, s *store.Store[State], state State, payload any) *store.Result {
	p, err := payloadAs[DisableRules](ActionSetDisableRules, payload)
	if err != nil {
		return store.Fail(err)
	}

	next := state.Clone()
	next.DisableRules = state.DisableRules.Merge(p)
	s.Publish(next)
	return store.Done()
}
