package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/shamescroll/internal/broadcast"
	"github.com/joescharf/shamescroll/internal/client"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/output"
)

var watchTicks bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow daemon events live",
	Long: `Print tracking changes, notifications, focus changes and rule updates as
the daemon broadcasts them. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
		defer stop()
		return watchRun(ctx)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchTicks, "ticks", false, "Print every timer tick, not only changes")
	rootCmd.AddCommand(watchCmd)
}

func watchRun(ctx context.Context) error {
	w := &eventPrinter{ticks: watchTicks}
	err := daemonClient().Events(ctx, w.print)
	switch {
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, client.ErrStreamClosed):
		ui.Info("Daemon closed the event stream")
		return nil
	default:
		return requireDaemon(err)
	}
}

// eventPrinter renders broadcast events, collapsing repeated ticks.
type eventPrinter struct {
	ticks bool
	last  shamePayload
	seen  bool
}

type shamePayload struct {
	Host         string              `json:"host"`
	Time         int64               `json:"time"`
	IsTracking   bool                `json:"isTracking"`
	WarningLevel models.WarningLevel `json:"warningLevel"`
}

func (p *eventPrinter) print(ev client.Event) error {
	switch ev.Type {
	case broadcast.TypeShameUpdate:
		var s shamePayload
		if err := ev.Decode(&s); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		changed := !p.seen || s.Host != p.last.Host || s.IsTracking != p.last.IsTracking ||
			s.WarningLevel != p.last.WarningLevel
		p.last, p.seen = s, true
		if !changed && !p.ticks {
			return nil
		}
		if !s.IsTracking {
			fmt.Fprintln(ui.Out, "Not tracking")
			return nil
		}
		fmt.Fprintf(ui.Out, "%s  %s  %s\n", s.Host, output.FormatClock(s.Time),
			output.WarningColor(string(s.WarningLevel)))

	case broadcast.TypeNotification:
		var n struct {
			Kind    string `json:"kind"`
			Title   string `json:"title"`
			Message string `json:"message"`
		}
		if err := ev.Decode(&n); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		ui.Notice(n.Kind, n.Title, n.Message)

	case broadcast.TypeFocusStateUpdate:
		var f struct {
			FocusState models.FocusState `json:"focusState"`
		}
		if err := ev.Decode(&f); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		if f.FocusState.IsActive {
			fmt.Fprintf(ui.Out, "Focus %s: %s until %s\n", output.FocusColor(true),
				f.FocusState.Mission, f.FocusState.EndTime.Local().Format("15:04"))
		} else {
			fmt.Fprintf(ui.Out, "Focus %s\n", output.FocusColor(false))
		}

	case broadcast.TypeRulesUpdate:
		var r struct {
			Rules []models.BlockRule `json:"rules"`
		}
		if err := ev.Decode(&r); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		fmt.Fprintf(ui.Out, "Blocking rules: %d\n", len(r.Rules))

	case broadcast.TypePreferencesUpdate:
		ui.VerboseLog("Preferences changed")

	default:
		ui.VerboseLog("Ignoring event %s", ev.Type)
	}
	return nil
}
