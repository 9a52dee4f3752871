package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. HEALTHDASH_LISTEN_ADDR
const EnvPrefix = "HEALTHDASH"

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	Debug      bool   `mapstructure:"debug" yaml:"debug"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat  string `mapstructure:"log_format" yaml:"log_format"`

	// Directories
	DataDirectory      string `mapstructure:"data_directory" yaml:"data_directory"`
	DataFile           string `mapstructure:"data_file" yaml:"data_file"`
	TemplatesDirectory string `mapstructure:"templates_directory" yaml:"templates_directory"`
	StaticDirectory    string `mapstructure:"static_directory" yaml:"static_directory"`
	ExportDirectory    string `mapstructure:"export_directory" yaml:"export_directory"`

	// Statistical block
	Alpha        float64 `mapstructure:"alpha" yaml:"alpha"`
	MinGroupSize int     `mapstructure:"min_group_size" yaml:"min_group_size"`

	// Postgres export
	DatabaseURL   string `mapstructure:"database_url" yaml:"database_url,omitempty"`
	DatabaseTable string `mapstructure:"database_table" yaml:"database_table"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Config{
		ListenAddr:         ":8080",
		LogLevel:           "info",
		LogFormat:          "json",
		DataDirectory:      filepath.Join(wd, "data"),
		DataFile:           "healthcare_dataset.csv",
		TemplatesDirectory: filepath.Join(wd, "web", "templates"),
		StaticDirectory:    filepath.Join(wd, "web", "static"),
		ExportDirectory:    filepath.Join(wd, "data", "exports"),
		Alpha:              0.05,
		MinGroupSize:       3,
		DatabaseTable:      "patient_records",
	}
}

// Short environment names kept next to the prefixed key names
var envAliases = map[string]string{
	"data_directory":      EnvPrefix + "_DATA_DIR",
	"templates_directory": EnvPrefix + "_TEMPLATES_DIR",
	"static_directory":    EnvPrefix + "_STATIC_DIR",
	"export_directory":    EnvPrefix + "_EXPORT_DIR",
}

// Load reads configuration from defaults, then the optional YAML file at
// cfgFile, then HEALTHDASH_* environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	defaults := DefaultConfig()
	settings := map[string]interface{}{
		"listen_addr":         defaults.ListenAddr,
		"debug":               defaults.Debug,
		"log_level":           defaults.LogLevel,
		"log_format":          defaults.LogFormat,
		"data_directory":      defaults.DataDirectory,
		"data_file":           defaults.DataFile,
		"templates_directory": defaults.TemplatesDirectory,
		"static_directory":    defaults.StaticDirectory,
		"export_directory":    "",
		"alpha":               defaults.Alpha,
		"min_group_size":      defaults.MinGroupSize,
		"database_url":        "",
		"database_table":      defaults.DatabaseTable,
	}
	for key, value := range settings {
		v.SetDefault(key, value)

		// Bind explicitly so Unmarshal sees env-only keys
		if alias, ok := envAliases[key]; ok {
			_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), alias)
		} else {
			_ = v.BindEnv(key)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Exports live under the data directory unless placed elsewhere
	if cfg.ExportDirectory == "" {
		cfg.ExportDirectory = filepath.Join(cfg.DataDirectory, "exports")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ensureDirectories(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that would make the dashboard misbehave
func (c *Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("alpha must be between 0 and 1, got %g", c.Alpha)
	}
	if c.MinGroupSize < 3 {
		return fmt.Errorf("min_group_size must be at least 3, got %d", c.MinGroupSize)
	}
	if c.DataFile == "" {
		return fmt.Errorf("data_file is required")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be \"json\" or \"console\", got %q", c.LogFormat)
	}
	return nil
}

// DataPath returns the full path of the patient table
func (c *Config) DataPath() string {
	if filepath.IsAbs(c.DataFile) {
		return c.DataFile
	}
	return filepath.Join(c.DataDirectory, c.DataFile)
}

// ensureDirectories creates required directories if they don't exist
func (c *Config) ensureDirectories() error {
	for _, dir := range []string{c.DataDirectory, c.ExportDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Save writes the configuration as YAML to path
func Save(c *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
