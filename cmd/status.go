package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joescharf/shamescroll/internal/client"
	"github.com/joescharf/shamescroll/internal/clock"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's doomscroll time",
	Long: `Show time spent on tracked sites today, the site being timed right now,
and the focus session if one is running.

Reads from the daemon when it is running, else straight from the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusView is everything the status screen shows.
type statusView struct {
	Today   *models.DaySnapshot
	Current models.TrackingStatus
	Focus   models.FocusState
	Offline bool
}

// siteTime is one row of the site list.
type siteTime struct {
	Host    string
	Seconds int64
}

func statusRun() error {
	ctx := context.Background()
	v, err := loadStatus(ctx)
	if err != nil {
		return err
	}
	renderStatus(v, time.Now())
	return nil
}

func loadStatus(ctx context.Context) (statusView, error) {
	c := daemonClient()

	today, err := c.Today(ctx)
	if err != nil {
		if client.IsUnavailable(err) {
			return loadStatusFromStore(ctx)
		}
		return statusView{}, err
	}
	cur, err := c.Status(ctx)
	if err != nil {
		return statusView{}, err
	}
	focus, err := c.FocusState(ctx)
	if err != nil {
		return statusView{}, err
	}
	return statusView{Today: today.Today, Current: cur, Focus: focus}, nil
}

// loadStatusFromStore reads the database directly. Nothing is being timed
// while the daemon is down, so Current stays empty.
func loadStatusFromStore(ctx context.Context) (statusView, error) {
	s, err := getStore()
	if err != nil {
		return statusView{}, err
	}
	today, err := s.GetDaySnapshot(ctx, models.SlotToday)
	if err != nil {
		return statusView{}, err
	}
	if today == nil || today.Date != clock.DayKey(time.Now()) {
		today = nil
	}
	focus, err := s.GetFocusState(ctx)
	if err != nil {
		return statusView{}, err
	}
	return statusView{Today: today, Focus: focus, Offline: true}, nil
}

// sortedSites orders sites by time spent, most first, then by name.
func sortedSites(snap *models.DaySnapshot) []siteTime {
	if snap == nil {
		return nil
	}
	out := make([]siteTime, 0, len(snap.Sites))
	for host, secs := range snap.Sites {
		if secs > 0 {
			out = append(out, siteTime{Host: host, Seconds: secs})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seconds != out[j].Seconds {
			return out[i].Seconds > out[j].Seconds
		}
		return out[i].Host < out[j].Host
	})
	return out
}

func renderStatus(v statusView, now time.Time) {
	if v.Offline {
		ui.Warning("Daemon is not running; showing saved data")
	}

	bold := color.New(color.Bold).SprintFunc()

	if v.Focus.IsActive {
		fmt.Fprintf(ui.Out, "Focus (%s): %s  %s left\n",
			output.FocusColor(true), v.Focus.Mission,
			output.FormatCountdown(v.Focus.Remaining(now)))
		fmt.Fprintln(ui.Out)
	}

	if v.Current.IsTracking {
		fmt.Fprintf(ui.Out, "Now: %s  %s  %s\n", bold(v.Current.Host),
			output.FormatClock(v.Current.ElapsedSeconds), output.WarningColor(string(v.Current.WarningLevel)))
	} else {
		fmt.Fprintf(ui.Out, "Now: %s\n", bold("A productive task!"))
	}
	fmt.Fprintln(ui.Out)

	rows := sortedSites(v.Today)
	if len(rows) == 0 {
		ui.Info("No doomscrolling detected... for now.")
		return
	}

	var total int64
	table := ui.Table([]string{"Site", "Time"})
	for _, r := range rows {
		total += r.Seconds
		_ = table.Append([]string{r.Host, output.FormatDuration(r.Seconds)})
	}
	_ = table.Render()

	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "Total today: %s\n", bold(output.FormatDuration(total)))
}
