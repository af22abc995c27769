package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/shamescroll/internal/client"
	"github.com/joescharf/shamescroll/internal/clock"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/output"
	"github.com/joescharf/shamescroll/internal/report"
)

var (
	reportDays    int
	reportFormat  string
	reportReflect bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the scroll and focus dashboard",
	Long: `Show daily scroll time, focus sessions, and completed missions for the
last few days.

With --reflect, an Anthropic model writes a short note on the week. Set
anthropic.api_key or ANTHROPIC_API_KEY to use it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportRun(cmd.Context())
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", report.DefaultDays, "Number of days to include")
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "Output format: table, json, csv")
	reportCmd.Flags().BoolVar(&reportReflect, "reflect", false, "Ask the LLM for a reflection on the report")
	rootCmd.AddCommand(reportCmd)
}

func reportRun(ctx context.Context) error {
	if reportDays < 1 || reportDays > 366 {
		return fmt.Errorf("--days must be between 1 and 366")
	}
	switch reportFormat {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unknown format: %s (use: table, json, csv)", reportFormat)
	}

	rep, streak, err := loadReport(ctx, reportDays)
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	case "csv":
		if err := writeReportCSV(rep); err != nil {
			return err
		}
	default:
		renderReport(rep, streak)
	}

	if reportReflect {
		return reflectRun(ctx, rep, streak)
	}
	return nil
}

// loadReport asks the daemon, falling back to the database when it is down.
func loadReport(ctx context.Context, days int) (report.Report, models.StreakData, error) {
	c := daemonClient()
	rep, err := c.Report(ctx, days)
	if err == nil {
		streak, err := c.Streak(ctx)
		return rep, streak, err
	}
	if !client.IsUnavailable(err) {
		return report.Report{}, models.StreakData{}, err
	}

	s, err := getStore()
	if err != nil {
		return report.Report{}, models.StreakData{}, err
	}
	today := clock.DayKey(time.Now())
	records, err := s.ListDailyRecords(ctx, report.Since(today, days))
	if err != nil {
		return report.Report{}, models.StreakData{}, err
	}
	streak, err := s.GetStreak(ctx)
	if err != nil {
		return report.Report{}, models.StreakData{}, err
	}
	return report.Build(records, today, days), streak, nil
}

func writeReportCSV(rep report.Report) error {
	w := csv.NewWriter(ui.Out)
	_ = w.Write([]string{"Date", "ScrollSeconds", "FocusSessions", "FocusMillis", "Missions"})
	for _, d := range rep.Days {
		_ = w.Write([]string{
			d.Date,
			strconv.FormatInt(d.ScrollTime, 10),
			strconv.Itoa(d.FocusSessions),
			strconv.FormatInt(d.FocusTime, 10),
			strconv.Itoa(d.Missions),
		})
	}
	w.Flush()
	return w.Error()
}

func renderReport(rep report.Report, streak models.StreakData) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(ui.Out, "%s  %s to %s\n\n", bold("Report"), rep.From, rep.To)

	table := ui.Table([]string{"Date", "Scroll", "Focus", "Sessions"})
	for _, d := range rep.Days {
		date := d.Date
		if d.Date == rep.BestDay {
			date += " *"
		}
		_ = table.Append([]string{
			date,
			output.FormatDuration(d.ScrollTime),
			output.FormatDuration(d.FocusTime / 1000),
			strconv.Itoa(d.FocusSessions),
		})
	}
	_ = table.Render()

	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "Total scroll:   %s (avg %s/day)\n",
		output.FormatDuration(rep.TotalScrollTime), output.FormatDuration(rep.AverageScrollTime))
	fmt.Fprintf(ui.Out, "Focus:          %d sessions, %d min\n", rep.TotalFocusSessions, rep.FocusMinutes())
	if rep.BestDay != "" {
		fmt.Fprintf(ui.Out, "Best day:       %s\n", rep.BestDay)
	}
	fmt.Fprintf(ui.Out, "Streak:         %s (longest %s)\n", dayCount(streak.Current), dayCount(streak.Longest))

	if len(rep.Missions) > 0 {
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, bold("Completed missions"))
		for _, m := range rep.Missions {
			fmt.Fprintf(ui.Out, "  %s  %s\n", m.Timestamp.Local().Format("Jan 02 15:04"), m.Text)
		}
	}
}

func reflectRun(ctx context.Context, rep report.Report, streak models.StreakData) error {
	llmClient := newLLMClient()
	if llmClient == nil {
		return fmt.Errorf("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}

	if dryRun {
		ui.DryRunMsg("Would ask %s for a reflection", viper.GetString("anthropic.model"))
		return nil
	}

	ui.VerboseLog("Requesting reflection from %s", viper.GetString("anthropic.model"))
	r, err := llmClient.Reflect(ctx, rep, streak)
	if err != nil {
		return fmt.Errorf("reflection: %w", err)
	}

	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, color.New(color.Bold).Sprint("Reflection"))
	fmt.Fprintf(ui.Out, "  %s\n", r.Summary)
	for _, w := range r.Wins {
		fmt.Fprintf(ui.Out, "  + %s\n", w)
	}
	if r.Suggestion != "" {
		fmt.Fprintf(ui.Out, "  Next: %s\n", r.Suggestion)
	}
	return nil
}
