package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"healthdash/internal/config"
	"healthdash/internal/logging"
)

var (
	// Global flags
	cfgFile       string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagDataFile  string

	// Loaded configuration
	cfg     *config.Config
	loadErr error
	logger  = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "healthdash",
	Short: "Healthcare admissions dashboard and statistical report",
	Long: `healthdash loads a healthcare admissions table, serves an interactive
dashboard filtered by admission year, and runs a fixed set of hypothesis
tests (chi-square, Shapiro-Wilk, Levene, ANOVA, Kruskal-Wallis) over it.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (YAML)")
	f.BoolVar(&flagDebug, "debug", false, "debug logging and template reloading")
	f.StringVar(&flagLogLevel, "log-level", "", "log level (overrides config)")
	f.StringVar(&flagLogFormat, "log-format", "", "log format: json or console (overrides config)")
	f.StringVar(&flagDataFile, "data-file", "", "patient CSV, relative to the data directory (overrides config)")

	rootCmd.AddCommand(serveCmd, analyzeCmd, exportCmd, encryptCmd, decryptCmd, configCmd, versionCmd)
}

func loadConfig() {
	c, err := config.Load(cfgFile)
	if err != nil {
		loadErr = err
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("debug") {
		cfg.Debug = flagDebug
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if f.Changed("data-file") {
		cfg.DataFile = flagDataFile
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
		cfg.LogFormat = "console"
	}
	if err := cfg.Validate(); err != nil {
		cfg, loadErr = nil, err
		return
	}

	// Commands print results on stdout, so logs go to stderr
	logger = logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

// requireConfig returns the configuration or the error that prevented loading it
func requireConfig() (*config.Config, error) {
	if cfg == nil {
		if loadErr != nil {
			return nil, fmt.Errorf("load config: %w", loadErr)
		}
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}
