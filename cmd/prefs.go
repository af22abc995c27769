package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change display preferences",
}

var prefsTimerHiddenCmd = &cobra.Command{
	Use:   "timer-hidden [true|false]",
	Short: "Show or set whether the on-page timer is hidden",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return prefsTimerHiddenShow()
		}
		hidden, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("invalid value %q (use: true, false)", args[0])
		}
		return prefsTimerHiddenSet(hidden)
	},
}

func init() {
	prefsCmd.AddCommand(prefsTimerHiddenCmd)
	rootCmd.AddCommand(prefsCmd)
}

func prefsTimerHiddenShow() error {
	hidden, err := daemonClient().TimerHidden(context.Background())
	if err != nil {
		return requireDaemon(err)
	}
	fmt.Fprintf(ui.Out, "timer-hidden: %t\n", hidden)
	return nil
}

func prefsTimerHiddenSet(hidden bool) error {
	if dryRun {
		ui.DryRunMsg("Would set timer-hidden to %t", hidden)
		return nil
	}
	if err := daemonClient().SetTimerHidden(context.Background(), hidden); err != nil {
		return requireDaemon(err)
	}
	if hidden {
		ui.Success("On-page timer hidden")
	} else {
		ui.Success("On-page timer shown")
	}
	return nil
}
