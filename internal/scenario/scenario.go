// Package scenario runs scripted sequences of dispatches against a store and
// checks the state after each one.
//
// A scenario file is YAML:
//
//	name: pick a day
//	kind: datepicker
//	initial:
//	  calendarCurrent: { year: 2024, month: 3, day: 1 }
//	selects: [calendarCurrent]
//	steps:
//	  - dispatch: changeCalendarCurrent
//	    payload: { day: 15 }
//	    expect:
//	      calendarCurrent: { day: 15 }
//	  - dispatch: nope
//	    expectError: ActionNotRegistered
//
// Kind "script" runs a Lua script instead; its path is resolved relative to
// the scenario file and its selects are dotted keys into the state map.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario kinds.
const (
	KindDatepicker = "datepicker"
	KindScript     = "script"
)

// ErrInvalidScenario is returned for scenario files that cannot run.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a parsed scenario file.
type Scenario struct {
	Name    string    `yaml:"name"`
	Kind    string    `yaml:"kind"`
	Script  string    `yaml:"script,omitempty"`
	Initial yaml.Node `yaml:"initial,omitempty"`
	Selects []string  `yaml:"selects,omitempty"`
	Steps   []Step    `yaml:"steps"`

	// Path is the file the scenario was loaded from, if any.
	Path string `yaml:"-"`
}

// Step is one dispatch and what to expect from it.
type Step struct {
	Dispatch    string    `yaml:"dispatch"`
	Payload     yaml.Node `yaml:"payload,omitempty"`
	Expect      yaml.Node `yaml:"expect,omitempty"`
	ExpectError string    `yaml:"expectError,omitempty"`
}

// LoadFile reads and validates a scenario file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes and validates a scenario. path is used to resolve the
// script file and may be empty.
func Parse(data []byte, path string) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", displayPath(path), err)
	}
	sc.Path = path
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that the scenario can run.
func (sc *Scenario) Validate() error {
	var problems []string

	switch sc.Kind {
	case KindDatepicker:
		if sc.Script != "" {
			problems = append(problems, "script is only allowed for kind script")
		}
	case KindScript:
		if sc.Script == "" {
			problems = append(problems, "kind script needs a script path")
		}
	case "":
		problems = append(problems, "kind is required")
	default:
		problems = append(problems, fmt.Sprintf("unknown kind %q", sc.Kind))
	}

	if len(sc.Steps) == 0 {
		problems = append(problems, "at least one step is required")
	}
	for i, step := range sc.Steps {
		if step.Dispatch == "" {
			problems = append(problems, fmt.Sprintf("step %d: dispatch is required", i+1))
		}
		if step.ExpectError != "" {
			if _, ok := errorKinds[step.ExpectError]; !ok {
				problems = append(problems, fmt.Sprintf("step %d: unknown error kind %q", i+1, step.ExpectError))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w %s: %s", ErrInvalidScenario, displayPath(sc.Path), strings.Join(problems, "; "))
	}
	return nil
}

// ScriptPath returns the script path resolved against the scenario file.
func (sc *Scenario) ScriptPath() string {
	if sc.Script == "" || filepath.IsAbs(sc.Script) || sc.Path == "" {
		return sc.Script
	}
	return filepath.Join(filepath.Dir(sc.Path), sc.Script)
}

// Files returns the files the scenario depends on, for watching.
func (sc *Scenario) Files() []string {
	var files []string
	if sc.Path != "" {
		files = append(files, sc.Path)
	}
	if p := sc.ScriptPath(); p != "" {
		files = append(files, p)
	}
	return slices.Compact(files)
}

func displayPath(path string) string {
	if path == "" {
		return "<inline>"
	}
	return path
}
