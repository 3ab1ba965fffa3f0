package config

import (
	"fmt"
	"strings"
	"time"

	"ledger-bank-reconciler/internal/api"
	"ledger-bank-reconciler/internal/parsers"
	"ledger-bank-reconciler/internal/reconciler"
	"ledger-bank-reconciler/internal/reporter"
	"ledger-bank-reconciler/pkg/logger"

	"github.com/spf13/viper"
)

// Preset names accepted by --preset
const (
	PresetDefault = "default"
	PresetStrict  = "strict"
	PresetRelaxed = "relaxed"
)

// Presets lists the preset names in the order shown in help text
var Presets = []string{PresetDefault, PresetStrict, PresetRelaxed}

// PresetConfig returns the reconciler configuration of a preset
func PresetConfig(name string) (*reconciler.Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetDefault:
		return reconciler.DefaultConfig(), nil
	case PresetStrict:
		return reconciler.StrictConfig(), nil
	case PresetRelaxed:
		return reconciler.RelaxedConfig(), nil
	default:
		return nil, fmt.Errorf("unknown preset %q, valid presets: %s", name, strings.Join(Presets, ", "))
	}
}

// LoadReconcilerConfig builds the reconciler configuration from v.
//
// The preset named by "preset" is the starting point. A "matching" or
// "normalizer" section in the config file overrides single fields of it,
// then "tolerance" and "bank-period" from flags or the environment win.
func LoadReconcilerConfig(v *viper.Viper) (*reconciler.Config, error) {
	cfg, err := PresetConfig(v.GetString("preset"))
	if err != nil {
		return nil, err
	}

	if v.IsSet("matching") {
		if err := v.UnmarshalKey("matching", cfg.Matching); err != nil {
			return nil, fmt.Errorf("invalid matching section: %w", err)
		}
	}
	if v.IsSet("normalizer") {
		if err := v.UnmarshalKey("normalizer", cfg.Normalizer); err != nil {
			return nil, fmt.Errorf("invalid normalizer section: %w", err)
		}
	}
	if v.IsSet("tolerance") {
		cfg.Matching.ToleranceDays = v.GetInt("tolerance")
	}
	if period := v.GetString("bank-period"); period != "" {
		cfg.BankPeriod = reconciler.BankPeriod(strings.ToLower(period))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParserFormat returns the CSV layout registered under name
func ParserFormat(name string) (*parsers.Format, error) {
	format := parsers.GetFormat(name)
	if format == nil {
		var names []string
		for _, f := range parsers.ListFormats() {
			names = append(names, f.Name)
		}
		return nil, fmt.Errorf("unknown file format %q, valid formats: %s", name, strings.Join(names, ", "))
	}
	return format, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string, useColors bool) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(format))

	switch config.Format {
	case reporter.FormatConsole:
		config.UseColors = useColors
	case reporter.FormatJSON:
		config.UseColors = false
		config.IncludeChart = true
	case reporter.FormatCSV:
		config.UseColors = false
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	default:
		return nil, fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", format)
	}

	return config, config.Validate()
}

// CreateLoggerConfig returns the CLI logger configuration. Logs go to stderr
// so reports on stdout stay machine readable.
func CreateLoggerConfig(verbose bool, format string) *logger.Config {
	config := logger.DefaultConfig()
	config.Level = logger.WarnLevel
	if verbose {
		config = logger.DebugConfig()
	}
	if format != "" {
		config.Format = logger.Format(strings.ToLower(format))
	}
	return config
}

// ServerConfig holds the settings of `reconciler serve`
type ServerConfig struct {
	Port            string
	DatabaseURL     string
	ShutdownTimeout time.Duration
	Router          *api.RouterConfig
}

// LoadServerConfig reads the server settings from v. PORT, DATABASE_URL and
// CORS_ORIGINS are read from the environment under their plain names.
func LoadServerConfig(v *viper.Viper) (*ServerConfig, error) {
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("cors_origins", "CORS_ORIGINS")

	v.SetDefault("port", "8080")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("shutdown_timeout", 30*time.Second)

	router := api.DefaultRouterConfig()
	if origins := splitList(v.GetString("cors_origins")); len(origins) > 0 {
		router.AllowOrigins = origins
	}
	router.RequestTimeout = v.GetDuration("request_timeout")
	if v.IsSet("max_upload_bytes") {
		router.MaxUploadBytes = v.GetInt64("max_upload_bytes")
	}

	config := &ServerConfig{
		Port:            strings.TrimPrefix(v.GetString("port"), ":"),
		DatabaseURL:     v.GetString("database_url"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		Router:          router,
	}
	return config, config.Validate()
}

// Validate checks the server settings
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Router.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative: %s", c.Router.RequestTimeout)
	}
	if c.Router.MaxUploadBytes < 0 {
		return fmt.Errorf("max upload bytes cannot be negative: %d", c.Router.MaxUploadBytes)
	}
	return nil
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return ":" + c.Port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
