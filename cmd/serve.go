package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/shamescroll/internal/coordinator"
	"github.com/joescharf/shamescroll/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon in the foreground",
	Long: `Run the shamescroll daemon in the foreground. It serves the HTTP API the
browser extension talks to, times tracked sites and runs focus sessions.

Use 'serve start' to run it in the background instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun()
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.Flags().String("listen", daemon.DefaultAddr, "address to listen on")
	_ = viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

// pidFile returns the PID file of the background daemon.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(daemon.PIDPath(viper.GetString("state_dir")))
}

// serveLogPath returns the log file of the background daemon.
func serveLogPath() string {
	return daemon.LogPath(viper.GetString("state_dir"))
}

func serveRun() error {
	cfg, err := coordinatorConfig()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr)

	pf := pidFile()
	if pid, running := pf.IsRunning(); running && pid != os.Getpid() {
		return fmt.Errorf("daemon already running (PID %d)", pid)
	}
	if dryRun {
		ui.DryRunMsg("Would serve on %s with database %s", viper.GetString("listen"), viper.GetString("db_path"))
		return nil
	}

	d, err := daemon.New(daemon.Options{
		Addr:        viper.GetString("listen"),
		DBPath:      viper.GetString("db_path"),
		Version:     buildVersion,
		Coordinator: cfg,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	if err := pf.Write(); err != nil {
		logger.Warn("write PID file", "path", pf.Path, "error", err)
	}
	defer func() { _ = pf.Release() }()

	watchThresholds(d.Coordinator(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()
	return d.Run(ctx)
}

// watchThresholds applies tracking threshold edits in the config file to
// the running coordinator. Other keys need a restart.
func watchThresholds(c *coordinator.Coordinator, logger *slog.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		warn, danger, err := thresholds()
		if err != nil {
			logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}
		c.SetThresholds(warn, danger)
		logger.Info("thresholds reloaded", "warning", warn, "danger", danger)
	})
	viper.WatchConfig()
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("daemon already running (PID %d)", pid)
	}
	if removed, err := pf.ClearStale(); err != nil {
		return fmt.Errorf("remove stale PID file: %w", err)
	} else if removed {
		ui.VerboseLog("Removed stale PID file %s", pf.Path)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	args := []string{"serve"}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if verbose {
		args = append(args, "--verbose")
	}

	logPath := serveLogPath()
	if dryRun {
		ui.DryRunMsg("Would run %s %v, logging to %s", exe, args, logPath)
		return nil
	}

	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if err := pf.WritePID(child.Process.Pid); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	_ = child.Process.Release()

	if waitHealthy(3 * time.Second) {
		ui.Success("Daemon started (PID %d) on %s", child.Process.Pid, daemonURL())
	} else {
		ui.Warning("Daemon started (PID %d) but is not answering yet; see %s", child.Process.Pid, logPath)
	}
	return nil
}

// waitHealthy polls the health endpoint until it answers or timeout passes.
func waitHealthy(timeout time.Duration) bool {
	c := daemonClient()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		err := c.Health(ctx)
		cancel()
		if err == nil {
			return true
		}
		time.Sleep(150 * time.Millisecond)
	}
	return false
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		_, _ = pf.ClearStale()
		return fmt.Errorf("daemon is not running")
	}
	if dryRun {
		ui.DryRunMsg("Would stop daemon (PID %d)", pid)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal daemon: %w", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, alive := pf.IsRunning(); !alive {
			_ = pf.Remove()
			ui.Success("Daemon stopped (PID %d)", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	ui.Warning("Daemon did not exit in time, killing PID %d", pid)
	if err := pf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill daemon: %w", err)
	}
	_ = pf.Remove()
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		ui.Info("Daemon is not running")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := daemonClient().Health(ctx); err != nil {
		ui.Warning("Daemon running (PID %d) but not answering on %s: %v", pid, daemonURL(), err)
		return nil
	}
	ui.Success("Daemon running (PID %d) on %s", pid, daemonURL())
	ui.VerboseLog("Log file: %s", serveLogPath())
	return nil
}
