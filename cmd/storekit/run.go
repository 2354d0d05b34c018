package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/storekit/internal/logging"
	"github.com/dshills/storekit/internal/scenario"
	"github.com/dshills/storekit/internal/script"
	"github.com/dshills/storekit/internal/store"
	"github.com/dshills/storekit/internal/watch"
)

func newRunCommand(a *app) *cobra.Command {
	var watchFiles bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a scenario file",
		Long: `Run a scenario file and print the report.

With --watch the scenario re-runs whenever it or its script changes, until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watchFiles {
				return a.watchScenario(cmd.Context(), args[0])
			}
			report, err := a.runScenario(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !report.Passed() {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "re-run when the scenario or its script changes")
	return cmd
}

func (a *app) runner() *scenario.Runner {
	return scenario.NewRunner(
		scenario.WithLogger(logging.Component(a.logger, "scenario")),
		scenario.WithStoreOptions(
			store.WithConfig(a.cfg.ForStore()),
			store.WithLogger(logging.Component(a.logger, "store")),
		),
		scenario.WithScriptOptions(
			script.WithLogger(logging.Component(a.logger, "script")),
			script.WithTimeout(a.cfg.Script.Timeout.Duration),
		),
	)
}

// runScenario loads and runs the scenario at path and prints its report.
func (a *app) runScenario(ctx context.Context, path string) (*scenario.Report, error) {
	sc, err := scenario.LoadFile(path)
	if err != nil {
		return nil, err
	}
	report, err := a.runner().Run(ctx, sc)
	if err != nil {
		return nil, err
	}
	renderReport(a.stdout, report)
	return report, nil
}

// watchScenario runs the scenario, then again after every change to the
// files it depends on.
func (a *app) watchScenario(ctx context.Context, path string) error {
	w, err := watch.New()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	logger := logging.Component(a.logger, "watch")

	rerun := func() {
		if _, err := a.runScenario(ctx, path); err != nil {
			fmt.Fprintln(a.stderr, errorStyle.Render("Error:"), err)
		}
		// The script path may have changed with the scenario.
		files := []string{path}
		if sc, err := scenario.LoadFile(path); err == nil {
			files = sc.Files()
		}
		for _, f := range files {
			if err := w.Add(f); err != nil {
				logger.Warn("cannot watch file", "path", f, "err", err)
			}
		}
		fmt.Fprintln(a.stdout, subtitleStyle.Render("Watching for changes. Press Ctrl+C to stop."))
	}

	rerun()
	err = w.Run(ctx, func(ev watch.Event) error {
		logger.Debug("file changed", "path", ev.Path, "op", ev.Op.String())
		fmt.Fprintln(a.stdout)
		rerun()
		return nil
	}, func(err error) {
		logger.Error("watch error", "err", err)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
