package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/shamescroll/internal/coordinator"
	"github.com/joescharf/shamescroll/internal/output"
)

var tabEvent string

var tabCmd = &cobra.Command{
	Use:   "tab <url>",
	Short: "Report a tab event to the daemon",
	Long: `Report a browser tab event by hand, the same way the extension does.

Useful for scripting and for checking which sites are tracked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tabRun(args[0])
	},
}

func init() {
	tabCmd.Flags().StringVar(&tabEvent, "event", string(coordinator.EventTabActivated),
		"Event kind: tab_activated, tab_updated, window_focus_changed")
	rootCmd.AddCommand(tabCmd)
}

func tabRun(url string) error {
	kind := coordinator.EventKind(tabEvent)
	if !kind.IsTabEvent() {
		return fmt.Errorf("unknown tab event %q (use: tab_activated, tab_updated, window_focus_changed)", tabEvent)
	}

	if dryRun {
		ui.DryRunMsg("Would send %s for %s", kind, url)
		return nil
	}

	st, err := daemonClient().SendTab(context.Background(), string(kind), url)
	if err != nil {
		return requireDaemon(err)
	}
	if !st.IsTracking {
		ui.Info("Not tracking")
		return nil
	}
	ui.Info("Tracking %s  %s  %s", st.Host, output.FormatClock(st.ElapsedSeconds),
		output.WarningColor(string(st.WarningLevel)))
	return nil
}
