package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dshills/storekit/internal/scenario"
	"github.com/dshills/storekit/internal/store"
)

// renderReport prints a scenario report.
func renderReport(w io.Writer, r *scenario.Report) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(r.Name), subtitleStyle.Render("("+r.Kind+", run "+shortID(r.ID)+")"))

	for _, step := range r.Steps {
		mark := successStyle.Render("✓")
		if !step.Passed() {
			mark = errorStyle.Render("✗")
		}
		line := fmt.Sprintf("  %s %2d %s %s", mark, step.Index, labelStyle.Render(actionStyle.Render(step.Action)), subtitleStyle.Render(formatDuration(step.Duration)))
		fmt.Fprintln(w, line)
		if !step.Passed() {
			fmt.Fprintf(w, "       %s\n", errorStyle.Render(step.Failure))
		} else if step.Err != nil {
			fmt.Fprintf(w, "       %s\n", warningStyle.Render("error: "+step.Err.Error()))
		}
	}

	if len(r.Selects) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, subtitleStyle.Render("Selects:"))
		for _, sel := range r.Selects {
			values := make([]string, len(sel.Values))
			for i, v := range sel.Values {
				values[i] = scenario.FormatValue(v)
			}
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(sel.Name), strings.Join(values, " → "))
		}
	}

	if r.Metrics != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, subtitleStyle.Render("Metrics:"))
		renderMetrics(w, *r.Metrics)
	}

	fmt.Fprintln(w)
	total := len(r.Steps)
	passed := total - r.Failures()
	summary := fmt.Sprintf("%d/%d steps passed in %s", passed, total, formatDuration(r.Duration))
	if r.Passed() {
		fmt.Fprintln(w, successStyle.Render("PASS"), summary)
	} else {
		fmt.Fprintln(w, errorStyle.Render("FAIL"), summary)
	}
}

func renderMetrics(w io.Writer, m store.MetricsSnapshot) {
	rows := []struct {
		label string
		value string
	}{
		{"dispatches", fmt.Sprint(m.TotalDispatches)},
		{"errors", fmt.Sprint(m.TotalErrors)},
		{"panics", fmt.Sprint(m.TotalPanics)},
		{"unobserved failures", fmt.Sprint(m.TotalUnobserved)},
		{"publishes", fmt.Sprint(m.TotalPublishes)},
		{"average dispatch", formatDuration(m.AverageDuration)},
		{"max in flight", fmt.Sprint(m.MaxInFlight)},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(row.label), row.value)
	}
}

// renderActions prints an action table.
func renderActions(w io.Writer, kind string, descs []store.Descriptor) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(kind), subtitleStyle.Render(fmt.Sprintf("(%d actions)", len(descs))))
	for _, d := range descs {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(actionStyle.Render(d.Name)), subtitleStyle.Render(d.HandlerName))
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
