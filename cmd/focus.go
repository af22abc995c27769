package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/shamescroll/internal/client"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/output"
)

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Start, stop, or show a focus session",
	Long: `Focus sessions block every tracked site until the timer runs out.

Running bare 'shamescroll focus' is the same as 'shamescroll focus status'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return focusStatusRun()
	},
}

var focusStartCmd = &cobra.Command{
	Use:   "start <mission...>",
	Short: "Start a focus session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return focusStartRun(strings.Join(args, " "))
	},
}

var focusStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "End the focus session early",
	RunE: func(cmd *cobra.Command, args []string) error {
		return focusStopRun()
	},
}

var focusStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the focus session and streak",
	RunE: func(cmd *cobra.Command, args []string) error {
		return focusStatusRun()
	},
}

func init() {
	focusCmd.AddCommand(focusStartCmd)
	focusCmd.AddCommand(focusStopCmd)
	focusCmd.AddCommand(focusStatusCmd)
	rootCmd.AddCommand(focusCmd)
}

// requireDaemon turns a connection failure into a hint to start the daemon.
func requireDaemon(err error) error {
	if client.IsUnavailable(err) {
		return fmt.Errorf("daemon is not running (start it with 'shamescroll serve start')")
	}
	return err
}

func focusStartRun(mission string) error {
	mission = strings.TrimSpace(mission)
	if mission == "" {
		return fmt.Errorf("mission is required")
	}

	if dryRun {
		ui.DryRunMsg("Would start focus session: %s", mission)
		return nil
	}

	ctx := context.Background()
	c := daemonClient()

	current, err := c.FocusState(ctx)
	if err != nil {
		return requireDaemon(err)
	}
	if current.IsActive {
		ui.Warning("Focus session already running: %s", current.Mission)
		return nil
	}

	f, err := c.StartFocus(ctx, mission)
	if err != nil {
		return requireDaemon(err)
	}
	ui.Success("Focus mode on: %s", f.Mission)
	fmt.Fprintf(ui.Out, "  Ends at %s (%s)\n", f.EndTime.Local().Format("15:04"),
		output.FormatCountdown(f.Remaining(time.Now())))
	return nil
}

func focusStopRun() error {
	ctx := context.Background()
	c := daemonClient()

	current, err := c.FocusState(ctx)
	if err != nil {
		return requireDaemon(err)
	}
	if !current.IsActive {
		ui.Info("No focus session running")
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would end focus session: %s", current.Mission)
		return nil
	}

	if _, err := c.StopFocus(ctx); err != nil {
		return requireDaemon(err)
	}
	ui.Warning("Focus session ended early: %s", current.Mission)
	return nil
}

func focusStatusRun() error {
	ctx := context.Background()
	c := daemonClient()

	f, err := c.FocusState(ctx)
	if err != nil {
		return requireDaemon(err)
	}
	streak, err := c.Streak(ctx)
	if err != nil {
		return requireDaemon(err)
	}
	renderFocus(f, streak, time.Now())
	return nil
}

func renderFocus(f models.FocusState, streak models.StreakData, now time.Time) {
	fmt.Fprintf(ui.Out, "Focus:   %s\n", output.FocusColor(f.IsActive))
	if f.IsActive {
		fmt.Fprintf(ui.Out, "Mission: %s\n", f.Mission)
		fmt.Fprintf(ui.Out, "Left:    %s\n", output.FormatCountdown(f.Remaining(now)))
	}
	fmt.Fprintf(ui.Out, "Streak:  %s (longest %s)\n", dayCount(streak.Current), dayCount(streak.Longest))
}

func dayCount(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
