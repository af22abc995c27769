package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "shamescroll"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage shamescroll configuration.

Running bare 'shamescroll config' is the same as 'shamescroll config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# shamescroll configuration
# See: shamescroll config show (for effective values and sources)

# State/data directory (default: ~/.config/shamescroll)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/shamescroll/shamescroll.db)
# db_path: {{ .DBPath }}

# Daemon listen address (default: 127.0.0.1:8721)
listen: "{{ .Listen }}"

# Focus mode
focus:
  # Session length (default: 25m)
  duration: "{{ .FocusDuration }}"

  # What happens to blocked navigations: block or redirect (default: redirect)
  block_action: "{{ .BlockAction }}"

  # Redirect target when block_action is redirect (default: focus.html,
  # the extension page; http://127.0.0.1:8721/focus.html uses the daemon's)
  redirect_url: "{{ .RedirectURL }}"

# Doomscroll warnings (reloaded while the daemon runs)
tracking:
  # Time on one site today before a warning (default: 30m)
  warning_threshold: "{{ .WarningThreshold }}"

  # Time on one site today before a danger alert (default: 60m)
  danger_threshold: "{{ .DangerThreshold }}"

# Weekly reflection via 'shamescroll report --reflect'
anthropic:
  # API key (falls back to ANTHROPIC_API_KEY)
  # api_key: ""

  # Model (default: {{ .Model }})
  model: "{{ .Model }}"
`

type configTemplateData struct {
	StateDir         string
	DBPath           string
	Listen           string
	FocusDuration    string
	BlockAction      string
	RedirectURL      string
	WarningThreshold string
	DangerThreshold  string
	Model            string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:         viper.GetString("state_dir"),
		DBPath:           viper.GetString("db_path"),
		Listen:           viper.GetString("listen"),
		FocusDuration:    viper.GetString("focus.duration"),
		BlockAction:      viper.GetString("focus.block_action"),
		RedirectURL:      viper.GetString("focus.redirect_url"),
		WarningThreshold: viper.GetString("tracking.warning_threshold"),
		DangerThreshold:  viper.GetString("tracking.danger_threshold"),
		Model:            viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "SHAMESCROLL_STATE_DIR"},
	{Key: "db_path", EnvVar: "SHAMESCROLL_DB_PATH"},
	{Key: "listen", EnvVar: "SHAMESCROLL_LISTEN"},
	{Key: "daemon_url", EnvVar: "SHAMESCROLL_DAEMON_URL"},
	{Key: "focus.duration", EnvVar: "SHAMESCROLL_FOCUS_DURATION"},
	{Key: "focus.block_action", EnvVar: "SHAMESCROLL_FOCUS_BLOCK_ACTION"},
	{Key: "focus.redirect_url", EnvVar: "SHAMESCROLL_FOCUS_REDIRECT_URL"},
	{Key: "tracking.warning_threshold", EnvVar: "SHAMESCROLL_TRACKING_WARNING_THRESHOLD"},
	{Key: "tracking.danger_threshold", EnvVar: "SHAMESCROLL_TRACKING_DANGER_THRESHOLD"},
	{Key: "anthropic.api_key", EnvVar: "SHAMESCROLL_ANTHROPIC_API_KEY"},
	{Key: "anthropic.model", EnvVar: "SHAMESCROLL_ANTHROPIC_MODEL"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Key == "anthropic.api_key" && viper.GetString(k.Key) != "" {
			val = "********"
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-28s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'shamescroll config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
