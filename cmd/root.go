package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/shamescroll/internal/blocking"
	"github.com/joescharf/shamescroll/internal/client"
	"github.com/joescharf/shamescroll/internal/coordinator"
	"github.com/joescharf/shamescroll/internal/daemon"
	"github.com/joescharf/shamescroll/internal/llm"
	"github.com/joescharf/shamescroll/internal/output"
	"github.com/joescharf/shamescroll/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "shamescroll",
	Short: "Doomscroll timer and focus-mode daemon",
	Long: `shamescroll times how long you spend on distracting sites, warns you when
it gets out of hand, and runs focus sessions that block those sites until
the timer runs out.

The daemon ('shamescroll serve') owns all state. The browser extension and
the commands below talk to it over a loopback HTTP API.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return statusRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/shamescroll/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "shamescroll")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SHAMESCROLL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	setDefaults(filepath.Join(home, ".config", "shamescroll"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default, rooted at
// stateDir.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "shamescroll.db"))
	viper.SetDefault("listen", daemon.DefaultAddr)
	viper.SetDefault("daemon_url", "")
	viper.SetDefault("focus.duration", "25m")
	viper.SetDefault("focus.block_action", "redirect")
	viper.SetDefault("focus.redirect_url", blocking.DefaultRedirectURL)
	viper.SetDefault("tracking.warning_threshold", "30m")
	viper.SetDefault("tracking.danger_threshold", "60m")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", llm.DefaultModel)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store and daemon client are created lazily so config/version
	// commands run without either.
}

// getStore opens the database directly. Used when the daemon is not
// running; the daemon itself opens its own handle.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// daemonURL is daemon_url when set, else derived from listen.
func daemonURL() string {
	if u := viper.GetString("daemon_url"); u != "" {
		return u
	}
	return "http://" + viper.GetString("listen")
}

// daemonClient returns a client for the configured daemon.
func daemonClient() *client.Client {
	return client.New(daemonURL())
}

// coordinatorConfig builds the coordinator settings from configuration.
func coordinatorConfig() (coordinator.Config, error) {
	cfg := coordinator.DefaultConfig()

	policy, err := blocking.ParsePolicy(viper.GetString("focus.block_action"), viper.GetString("focus.redirect_url"))
	if err != nil {
		return cfg, err
	}
	cfg.Policy = policy

	if d := viper.GetDuration("focus.duration"); d > 0 {
		cfg.FocusDuration = d
	}
	warn, danger, err := thresholds()
	if err != nil {
		return cfg, err
	}
	cfg.WarningThreshold = warn
	cfg.DangerThreshold = danger
	return cfg, nil
}

// thresholds reads and validates the warning and danger thresholds.
func thresholds() (warn, danger time.Duration, err error) {
	warn = viper.GetDuration("tracking.warning_threshold")
	danger = viper.GetDuration("tracking.danger_threshold")
	if warn <= 0 || danger <= 0 {
		return 0, 0, fmt.Errorf("tracking thresholds must be positive durations (got %q, %q)",
			viper.GetString("tracking.warning_threshold"), viper.GetString("tracking.danger_threshold"))
	}
	if danger < warn {
		return 0, 0, fmt.Errorf("tracking.danger_threshold (%s) is below tracking.warning_threshold (%s)", danger, warn)
	}
	return warn, danger, nil
}

// newLogger returns the daemon logger writing text records to w.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}
