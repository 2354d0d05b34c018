package store

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Metrics counts dispatches and publishes. One collector may be shared by
// several stores.
type Metrics struct {
	mu sync.RWMutex

	totals    tally
	publishes uint64
	inFlight  int64
	peak      int64
	actions   map[string]*ActionMetrics
}

// tally is the set of counters kept both overall and per action.
type tally struct {
	dispatches uint64
	failures   uint64
	panics     uint64
	unobserved uint64
	elapsed    time.Duration
}

// ActionMetrics is a copy of the counters for one action name.
type ActionMetrics struct {
	Name            string
	DispatchCount   uint64
	ErrorCount      uint64
	PanicCount      uint64
	UnobservedCount uint64
	TotalDuration   time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration

	// Results counts settled dispatches by how the handler completed.
	Results map[ResultKind]uint64

	LastError   error
	LastSettled time.Time
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{actions: make(map[string]*ActionMetrics)}
}

func (m *Metrics) action(name string) *ActionMetrics {
	am := m.actions[name]
	if am == nil {
		am = &ActionMetrics{Name: name, Results: make(map[ResultKind]uint64)}
		m.actions[name] = am
	}
	return am
}

func (m *Metrics) recordStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight++
	m.peak = max(m.peak, m.inFlight)
}

// RecordDispatch records a settled dispatch of actionName.
func (m *Metrics) RecordDispatch(actionName string, duration time.Duration, kind ResultKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inFlight > 0 {
		m.inFlight--
	}
	m.totals.dispatches++
	m.totals.elapsed += duration

	am := m.action(actionName)
	if am.DispatchCount == 0 || duration < am.MinDuration {
		am.MinDuration = duration
	}
	am.MaxDuration = max(am.MaxDuration, duration)
	am.DispatchCount++
	am.TotalDuration += duration
	am.Results[kind]++
	am.LastError = err
	am.LastSettled = time.Now()

	if err != nil {
		m.totals.failures++
		am.ErrorCount++
	}
}

// RecordPanic records a recovered handler panic.
func (m *Metrics) RecordPanic(actionName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.panics++
	m.action(actionName).PanicCount++
}

// RecordUnobserved records a failure that settled with nobody watching.
func (m *Metrics) RecordUnobserved(actionName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.unobserved++
	m.action(actionName).UnobservedCount++
}

// RecordPublish records a state publish.
func (m *Metrics) RecordPublish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishes++
}

func (m *Metrics) read(fn func() uint64) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn()
}

// TotalDispatches returns the number of settled dispatches.
func (m *Metrics) TotalDispatches() uint64 {
	return m.read(func() uint64 { return m.totals.dispatches })
}

// TotalErrors returns the number of failed dispatches.
func (m *Metrics) TotalErrors() uint64 {
	return m.read(func() uint64 { return m.totals.failures })
}

// TotalPanics returns the number of recovered panics.
func (m *Metrics) TotalPanics() uint64 {
	return m.read(func() uint64 { return m.totals.panics })
}

// TotalUnobserved returns the number of failures nobody observed.
func (m *Metrics) TotalUnobserved() uint64 {
	return m.read(func() uint64 { return m.totals.unobserved })
}

// TotalPublishes returns the number of publishes.
func (m *Metrics) TotalPublishes() uint64 {
	return m.read(func() uint64 { return m.publishes })
}

// InFlight returns the number of dispatches that have not settled.
func (m *Metrics) InFlight() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inFlight
}

// ActionStats returns a copy of the counters for actionName, or nil if it
// was never dispatched.
func (m *Metrics) ActionStats(actionName string) *ActionMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	am := m.actions[actionName]
	if am == nil {
		return nil
	}
	return am.clone()
}

// TopActions returns up to n actions, most dispatched first.
func (m *Metrics) TopActions(n int) []*ActionMetrics {
	m.mu.RLock()
	out := make([]*ActionMetrics, 0, len(m.actions))
	for _, am := range m.actions {
		out = append(out, am.clone())
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *ActionMetrics) int {
		if c := cmp.Compare(b.DispatchCount, a.DispatchCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out[:min(n, len(out))]
}

// Reset clears every counter. Dispatches still in flight stay counted.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totals = tally{}
	m.publishes = 0
	m.peak = m.inFlight
	m.actions = make(map[string]*ActionMetrics)
}

// MetricsSnapshot is a point-in-time copy of the totals.
type MetricsSnapshot struct {
	TotalDispatches uint64
	TotalErrors     uint64
	TotalPanics     uint64
	TotalUnobserved uint64
	TotalPublishes  uint64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	InFlight        int64
	MaxInFlight     int64
	ActionCount     int
	Timestamp       time.Time
}

// Snapshot returns the current totals.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalDispatches: m.totals.dispatches,
		TotalErrors:     m.totals.failures,
		TotalPanics:     m.totals.panics,
		TotalUnobserved: m.totals.unobserved,
		TotalPublishes:  m.publishes,
		TotalDuration:   m.totals.elapsed,
		InFlight:        m.inFlight,
		MaxInFlight:     m.peak,
		ActionCount:     len(m.actions),
		Timestamp:       time.Now(),
	}
	if snap.TotalDispatches > 0 {
		snap.AverageDuration = snap.TotalDuration / time.Duration(snap.TotalDispatches)
	}
	return snap
}

func (am *ActionMetrics) clone() *ActionMetrics {
	c := *am
	c.Results = make(map[ResultKind]uint64, len(am.Results))
	for k, v := range am.Results {
		c.Results[k] = v
	}
	return &c
}

// AverageActionDuration returns the mean settle time of the action.
func (am *ActionMetrics) AverageActionDuration() time.Duration {
	if am.DispatchCount == 0 {
		return 0
	}
	return am.TotalDuration / time.Duration(am.DispatchCount)
}

// ErrorRate returns the percentage of dispatches that failed.
func (am *ActionMetrics) ErrorRate() float64 {
	if am.DispatchCount == 0 {
		return 0
	}
	return float64(am.ErrorCount) / float64(am.DispatchCount) * 100
}
