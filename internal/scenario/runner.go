package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dshills/storekit/internal/script"
	"github.com/dshills/storekit/internal/store"
)

// DefaultStepTimeout bounds how long the runner waits for one dispatch.
const DefaultStepTimeout = 10 * time.Second

// Report is the outcome of one scenario run.
type Report struct {
	ID       string
	Name     string
	Kind     string
	Path     string
	Steps    []StepResult
	Selects  []SelectTrace
	Final    any
	Metrics  *store.MetricsSnapshot
	Started  time.Time
	Duration time.Duration
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int
	Action   string
	Value    any
	Err      error
	Failure  string
	Duration time.Duration
}

// Passed reports whether the step met its expectations.
func (r StepResult) Passed() bool {
	return r.Failure == ""
}

// SelectTrace is every value a selector feed delivered during the run.
type SelectTrace struct {
	Name   string
	Values []any
}

// Passed reports whether every step passed.
func (r *Report) Passed() bool {
	for _, s := range r.Steps {
		if !s.Passed() {
			return false
		}
	}
	return true
}

// Failures returns the number of failed steps.
func (r *Report) Failures() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Passed() {
			n++
		}
	}
	return n
}

// Runner runs scenarios.
type Runner struct {
	storeOpts   []store.Option
	scriptOpts  []script.Option
	logger      *log.Logger
	stepTimeout time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStoreOptions adds options for every store the runner creates.
func WithStoreOptions(opts ...store.Option) RunnerOption {
	return func(r *Runner) {
		r.storeOpts = append(r.storeOpts, opts...)
	}
}

// WithScriptOptions adds options for loading Lua scripts.
func WithScriptOptions(opts ...script.Option) RunnerOption {
	return func(r *Runner) {
		r.scriptOpts = append(r.scriptOpts, opts...)
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithStepTimeout bounds how long a step may stay pending.
func WithStepTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.stepTimeout = d
		}
	}
}

// NewRunner creates a runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger:      log.Default(),
		stepTimeout: DefaultStepTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes sc. Step failures are recorded in the report; an error is
// returned only when the scenario cannot run at all.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	storeOpts := append([]store.Option{store.WithLogger(r.logger)}, r.storeOpts...)
	t, err := r.open(sc, storeOpts)
	if err != nil {
		return nil, err
	}
	defer t.close()

	report := &Report{
		ID:      uuid.NewString(),
		Name:    sc.Name,
		Kind:    t.kind(),
		Path:    sc.Path,
		Started: time.Now(),
	}
	logger := r.logger.With("scenario", sc.Name, "run", report.ID)

	stop, err := r.record(t, sc.Selects)
	if err != nil {
		return nil, err
	}

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			stop()
			return nil, err
		}
		res := r.runStep(ctx, t, i+1, step)
		if res.Passed() {
			logger.Debug("step passed", "step", res.Index, "action", res.Action, "duration", res.Duration)
		} else {
			logger.Warn("step failed", "step", res.Index, "action", res.Action, "reason", res.Failure)
		}
		report.Steps = append(report.Steps, res)
	}

	report.Selects = stop()
	report.Final = t.state()
	if m := t.metrics(); m != nil {
		snap := m.Snapshot()
		report.Metrics = &snap
	}
	report.Duration = time.Since(report.Started)
	logger.Info("scenario finished", "steps", len(report.Steps), "failures", report.Failures(), "duration", report.Duration)
	return report, nil
}

func (r *Runner) open(sc *Scenario, storeOpts []store.Option) (target, error) {
	switch sc.Kind {
	case KindDatepicker:
		t, err := newDatepickerTarget(sc, storeOpts)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindScript:
		scriptOpts := append([]script.Option{script.WithLogger(r.logger)}, r.scriptOpts...)
		t, err := newScriptTarget(sc, storeOpts, scriptOpts)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidScenario, sc.Kind)
	}
}

// record subscribes to every named selector. stop cancels the
// subscriptions and returns what they saw.
func (r *Runner) record(t target, names []string) (func() []SelectTrace, error) {
	var (
		mu     sync.Mutex
		traces []*SelectTrace
		subs   []store.Subscription
	)
	cancel := func() {
		for _, sub := range subs {
			sub.Cancel()
		}
	}

	for _, name := range names {
		feed, err := t.selectFeed(name)
		if err != nil {
			cancel()
			return nil, err
		}
		trace := &SelectTrace{Name: name}
		traces = append(traces, trace)
		subs = append(subs, feed.Subscribe(func(v any) {
			p, err := plain(v)
			if err != nil {
				p = v
			}
			mu.Lock()
			trace.Values = append(trace.Values, p)
			mu.Unlock()
		}))
	}

	stop := func() []SelectTrace {
		cancel()
		mu.Lock()
		defer mu.Unlock()
		out := make([]SelectTrace, len(traces))
		for i, tr := range traces {
			out[i] = SelectTrace{Name: tr.Name, Values: append([]any(nil), tr.Values...)}
		}
		return out
	}
	return stop, nil
}

func (r *Runner) runStep(ctx context.Context, t target, index int, step Step) (res StepResult) {
	res = StepResult{Index: index, Action: step.Dispatch}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	c, err := t.dispatch(ctx, step.Dispatch, &step.Payload)
	if err != nil {
		res.Err = err
		res.Failure = err.Error()
		return res
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()
	res.Value, res.Err = c.Wait(waitCtx)
	if errors.Is(res.Err, context.DeadlineExceeded) && !c.Settled() {
		res.Failure = fmt.Sprintf("did not settle within %s", r.stepTimeout)
		return res
	}

	res.Failure = check(step, res.Err, t.state())
	return res
}

// check compares a settled step with its expectations and returns a
// failure description, or "" if it passed.
func check(step Step, err error, state any) string {
	if step.ExpectError != "" {
		if !matchError(step.ExpectError, err) {
			if err == nil {
				return fmt.Sprintf("expected %s error, dispatch succeeded", step.ExpectError)
			}
			return fmt.Sprintf("expected %s error, got: %v", step.ExpectError, err)
		}
	} else if err != nil {
		return fmt.Sprintf("unexpected error: %v", err)
	}

	if isEmpty(&step.Expect) {
		return ""
	}
	var expected any
	if err := step.Expect.Decode(&expected); err != nil {
		return fmt.Sprintf("decode expect: %v", err)
	}
	actual, err := plain(state)
	if err != nil {
		return fmt.Sprintf("encode state: %v", err)
	}
	if msg, ok := subset(expected, actual, ""); !ok {
		return msg
	}
	return ""
}
