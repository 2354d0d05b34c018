package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/storekit/internal/datepicker"
	"github.com/dshills/storekit/internal/logging"
	"github.com/dshills/storekit/internal/scenario"
	"github.com/dshills/storekit/internal/script"
)

func newActionsCommand(a *app) *cobra.Command {
	var scriptPath string

	cmd := &cobra.Command{
		Use:   "actions KIND",
		Short: "List the actions a store kind registers",
		Long: `List the actions a store kind registers.

KIND is "datepicker" or "script". For "script", --script names the Lua file.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{scenario.KindDatepicker, scenario.KindScript},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case scenario.KindDatepicker:
				renderActions(a.stdout, datepicker.Kind, datepicker.Actions.Descriptors())
				fmt.Fprintf(a.stdout, "\n%s %s\n", subtitleStyle.Render("Selectors:"), strings.Join(datepicker.SelectorNames(), ", "))
			case scenario.KindScript:
				if scriptPath == "" {
					return fmt.Errorf("kind script needs --script")
				}
				s, err := script.LoadFile(scriptPath,
					script.WithLogger(logging.Component(a.logger, "script")),
					script.WithTimeout(a.cfg.Script.Timeout.Duration),
				)
				if err != nil {
					return err
				}
				defer s.Close()
				renderActions(a.stdout, s.Name(), s.Actions().Descriptors())
			default:
				return fmt.Errorf("unknown kind %q (want %s or %s)", args[0], scenario.KindDatepicker, scenario.KindScript)
			}
			fmt.Fprintf(a.stdout, "%s %s\n", subtitleStyle.Render("Error kinds:"), strings.Join(scenario.ErrorKinds(), ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Lua script defining the actions")
	return cmd
}
