package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const passingScenario = `
name: pick a day
kind: datepicker
initial:
  calendarCurrent: { year: 2024, month: 3, day: 1 }
selects: [calendarCurrent]
steps:
  - dispatch: changeCalendarCurrent
    payload: { day: 15 }
    expect:
      calendarCurrent: { day: 15 }
`

const failingScenario = `
name: wrong day
kind: datepicker
initial:
  calendarCurrent: { year: 2024, month: 3, day: 1 }
steps:
  - dispatch: changeCalendarCurrent
    payload: { day: 15 }
    expect:
      calendarCurrent: { day: 16 }
`

const counterLua = `
actions = {}

function actions.increment(state)
    store.publish({ count = state.count + 1 })
end

function actions.reset()
    store.publish({ count = 0 })
end
`

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), append(args, "--log-level", "error"), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "storekit dev") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestActionsDatepicker(t *testing.T) {
	code, out, errOut := runCLI(t, "actions", "datepicker")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	for _, want := range []string{"changeCalendarCurrent", "setDisableRules", "calendarCurrentYear", "ActionNotRegistered"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestActionsScript(t *testing.T) {
	path := writeFile(t, t.TempDir(), "counter.lua", counterLua)

	code, out, errOut := runCLI(t, "actions", "script", "--script", path)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "increment") || !strings.Contains(out, "reset") {
		t.Errorf("expected both actions in output:\n%s", out)
	}
}

func TestActionsErrors(t *testing.T) {
	if code, _, errOut := runCLI(t, "actions", "script"); code != 1 || !strings.Contains(errOut, "--script") {
		t.Errorf("expected missing --script error, got %d %q", code, errOut)
	}
	if code, _, errOut := runCLI(t, "actions", "spreadsheet"); code != 1 || !strings.Contains(errOut, "unknown kind") {
		t.Errorf("expected unknown kind error, got %d %q", code, errOut)
	}
}

func TestRunPassingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pick.yaml", passingScenario)

	code, out, errOut := runCLI(t, "run", path)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s%s", code, out, errOut)
	}
	for _, want := range []string{"pick a day", "changeCalendarCurrent", "calendarCurrent", "PASS", "1/1 steps passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Metrics:") {
		t.Error("metrics are off by default")
	}
}

func TestRunFailingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wrong.yaml", failingScenario)

	code, out, _ := runCLI(t, "run", path)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out, "FAIL") || !strings.Contains(out, "calendarCurrent.day: expected 16, got 15") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunMissingFile(t *testing.T) {
	code, _, errOut := runCLI(t, "run", filepath.Join(t.TempDir(), "nope.yaml"))
	if code != 1 || !strings.Contains(errOut, "Error:") {
		t.Errorf("expected error exit, got %d %q", code, errOut)
	}
}

func TestRunMetricsFromEnvironment(t *testing.T) {
	t.Setenv("STOREKIT_STORE_METRICS", "true")
	path := writeFile(t, t.TempDir(), "pick.yaml", passingScenario)

	code, out, errOut := runCLI(t, "run", path)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Metrics:") || !strings.Contains(out, "dispatches") {
		t.Errorf("expected metrics section:\n%s", out)
	}
}

func TestConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "storekit.toml", "[store]\nmetrics = true\n")
	path := writeFile(t, dir, "pick.yaml", passingScenario)

	code, out, errOut := runCLI(t, "run", path, "--config", cfgPath)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Metrics:") {
		t.Errorf("expected metrics enabled by the config file:\n%s", out)
	}

	bad := writeFile(t, dir, "bad.toml", "[store]\nmetricz = true\n")
	if code, _, errOut := runCLI(t, "run", path, "--config", bad); code != 1 || !strings.Contains(errOut, "Error:") {
		t.Errorf("expected unknown key error, got %d %q", code, errOut)
	}

	var stdout, stderr bytes.Buffer
	if code := execute(context.Background(), []string{"version", "--log-level", "loud"}, &stdout, &stderr); code != 1 {
		t.Errorf("expected invalid log level to fail, got %d", code)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pick.yaml", passingScenario)

	ctx, cancel := context.WithCancel(context.Background())
	var stdout, stderr syncBuffer
	done := make(chan int, 1)
	go func() {
		done <- execute(ctx, []string{"run", path, "--watch", "--log-level", "error"}, &stdout, &stderr)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(stdout.String(), "Watching for changes") {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("watch never started:\n%s", stdout.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if code := <-done; code != 0 {
		t.Errorf("expected clean exit after cancel, got %d: %s", code, stderr.String())
	}
}

// syncBuffer is a bytes.Buffer safe for a writer and a reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
