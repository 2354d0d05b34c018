package scenario

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/storekit/internal/datepicker"
	"github.com/dshills/storekit/internal/script"
	"github.com/dshills/storekit/internal/store"
)

// errorKinds maps the names accepted by expectError to the errors they match.
// "any" matches every failure.
var errorKinds = map[string]error{
	"any":                    nil,
	"ActionNotRegistered":    store.ErrActionNotRegistered,
	"HandlerMissingMetadata": store.ErrHandlerMissingMetadata,
	"HandlerExecution":       store.ErrHandlerExecution,
	"StoreClosed":            store.ErrStoreClosed,
	"DateDisabled":           datepicker.ErrDateDisabled,
	"IncompleteDate":         datepicker.ErrIncompleteDate,
	"ScriptTimeout":          script.ErrTimeout,
}

// ErrorKinds returns the names accepted by expectError, sorted.
func ErrorKinds() []string {
	names := make([]string, 0, len(errorKinds))
	for name := range errorKinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func matchError(kind string, err error) bool {
	if err == nil {
		return false
	}
	target := errorKinds[kind]
	return target == nil || errors.Is(err, target)
}

// plain converts v to the generic form YAML decodes into: maps, slices and
// scalars, keyed by yaml field names.
func plain(v any) (any, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// subset reports the first place actual differs from expected. Maps in
// expected only constrain the keys they list; everything else must be equal.
func subset(expected, actual any, path string) (string, bool) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return fmt.Sprintf("%s: expected a mapping, got %s", label(path), FormatValue(actual)), false
		}
		keys := make([]string, 0, len(exp))
		for k := range exp {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			av, present := act[k]
			if !present && exp[k] != nil {
				return fmt.Sprintf("%s: missing", label(join(path, k))), false
			}
			if msg, ok := subset(exp[k], av, join(path, k)); !ok {
				return msg, false
			}
		}
		return "", true

	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return fmt.Sprintf("%s: expected %s, got %s", label(path), FormatValue(expected), FormatValue(actual)), false
		}
		for i := range exp {
			if msg, ok := subset(exp[i], act[i], fmt.Sprintf("%s[%d]", path, i)); !ok {
				return msg, false
			}
		}
		return "", true

	default:
		if scalarEqual(expected, actual) {
			return "", true
		}
		return fmt.Sprintf("%s: expected %s, got %s", label(path), FormatValue(expected), FormatValue(actual)), false
	}
}

func scalarEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	// int vs float64 after YAML decoding.
	af, aok := number(a)
	bf, bok := number(b)
	return aok && bok && af == bf
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// lookup follows a dotted key path through nested maps.
func lookup(m map[string]any, path string) any {
	var cur any = m
	for _, key := range strings.Split(path, ".") {
		next, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = next[key]
	}
	return cur
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func label(path string) string {
	if path == "" {
		return "state"
	}
	return path
}

// FormatValue renders v as single-line YAML for reports.
func FormatValue(v any) string {
	if v == nil {
		return "null"
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	s := strings.TrimSpace(string(data))
	if strings.Contains(s, "\n") {
		// Flow style keeps multi-line values on one report line.
		var node yaml.Node
		if err := node.Encode(v); err == nil {
			setFlow(&node)
			if out, err := yaml.Marshal(&node); err == nil {
				return strings.TrimSpace(string(out))
			}
		}
	}
	return s
}

func setFlow(n *yaml.Node) {
	n.Style |= yaml.FlowStyle
	for _, c := range n.Content {
		setFlow(c)
	}
}
