package config

import (
	"strings"
	"testing"
	"time"

	"ledger-bank-reconciler/internal/reconciler"
	"ledger-bank-reconciler/internal/reporter"
	"ledger-bank-reconciler/pkg/logger"

	"github.com/spf13/viper"
)

func TestPresetConfig(t *testing.T) {
	tests := []struct {
		name         string
		preset       string
		tolerance    int
		maxGroupSize int
		expectError  bool
	}{
		{"empty is default", "", 3, 5, false},
		{"default", "default", 3, 5, false},
		{"strict", "strict", 0, 3, false},
		{"relaxed upper case", "RELAXED", 7, 6, false},
		{"unknown", "loose", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := PresetConfig(tt.preset)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Matching.ToleranceDays != tt.tolerance {
				t.Errorf("expected tolerance %d, got %d", tt.tolerance, cfg.Matching.ToleranceDays)
			}
			if cfg.Matching.MaxGroupSize != tt.maxGroupSize {
				t.Errorf("expected max group size %d, got %d", tt.maxGroupSize, cfg.Matching.MaxGroupSize)
			}
		})
	}
}

func TestLoadReconcilerConfig_Overrides(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	yaml := `
preset: strict
matching:
  max_candidates: 20
  search_timeout: 250ms
normalizer:
  minor_unit_digits: 3
`
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	v.Set("tolerance", 2)
	v.Set("bank-period", "Ledger")

	cfg, err := LoadReconcilerConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Matching.ToleranceDays != 2 {
		t.Errorf("expected flag tolerance 2, got %d", cfg.Matching.ToleranceDays)
	}
	if cfg.Matching.MaxCandidates != 20 {
		t.Errorf("expected max candidates 20, got %d", cfg.Matching.MaxCandidates)
	}
	if cfg.Matching.MaxGroupSize != 3 {
		t.Errorf("expected strict group size to survive, got %d", cfg.Matching.MaxGroupSize)
	}
	if cfg.Matching.SearchTimeout != 250*time.Millisecond {
		t.Errorf("expected 250ms search timeout, got %s", cfg.Matching.SearchTimeout)
	}
	if cfg.Normalizer.MinorUnitDigits != 3 {
		t.Errorf("expected 3 minor unit digits, got %d", cfg.Normalizer.MinorUnitDigits)
	}
	if len(cfg.Normalizer.DateLayouts) == 0 {
		t.Error("expected default date layouts to survive")
	}
	if cfg.BankPeriod != reconciler.BankPeriodLedger {
		t.Errorf("expected bank period ledger, got %q", cfg.BankPeriod)
	}
}

func TestLoadReconcilerConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]interface{}
	}{
		{"tolerance above range", map[string]interface{}{"tolerance": 61}},
		{"negative tolerance", map[string]interface{}{"tolerance": -1}},
		{"unknown bank period", map[string]interface{}{"bank-period": "month"}},
		{"unknown preset", map[string]interface{}{"preset": "fuzzy"}},
		{"candidates below group size", map[string]interface{}{"matching": map[string]interface{}{"max_candidates": 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			if _, err := LoadReconcilerConfig(v); err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}

func TestParserFormat(t *testing.T) {
	for _, name := range []string{"", "default", "standard", "br", "debit_credit"} {
		if _, err := ParserFormat(name); err != nil {
			t.Errorf("format %q: unexpected error: %v", name, err)
		}
	}

	_, err := ParserFormat("ofx")
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), "debit_credit") {
		t.Errorf("expected valid formats in the error, got %v", err)
	}
}

func TestCreateReportConfig(t *testing.T) {
	tests := []struct {
		format      string
		colors      bool
		expected    reporter.OutputFormat
		wantColors  bool
		expectError bool
	}{
		{"console", true, reporter.FormatConsole, true, false},
		{"console", false, reporter.FormatConsole, false, false},
		{"JSON", true, reporter.FormatJSON, false, false},
		{"csv", true, reporter.FormatCSV, false, false},
		{"xml", true, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			config, err := CreateReportConfig(tt.format, tt.colors)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Format != tt.expected {
				t.Errorf("expected format %s, got %s", tt.expected, config.Format)
			}
			if config.UseColors != tt.wantColors {
				t.Errorf("expected UseColors=%v, got %v", tt.wantColors, config.UseColors)
			}
			if config.Format == reporter.FormatJSON && !config.IncludeChart {
				t.Error("expected JSON output to carry the chart")
			}
		})
	}
}

func TestCreateLoggerConfig(t *testing.T) {
	quiet := CreateLoggerConfig(false, "")
	if quiet.Level != logger.WarnLevel || quiet.Output != logger.StderrOutput {
		t.Errorf("unexpected quiet config %+v", quiet)
	}

	verbose := CreateLoggerConfig(true, "json")
	if verbose.Level != logger.DebugLevel || verbose.Format != logger.JSONFormat {
		t.Errorf("unexpected verbose config %+v", verbose)
	}
	if err := verbose.Validate(); err != nil {
		t.Errorf("verbose config should be valid: %v", err)
	}
}

func TestLoadServerConfig(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/reconciler")
	t.Setenv("CORS_ORIGINS", "http://a.example, ,http://b.example")

	config, err := LoadServerConfig(viper.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Addr() != ":9090" {
		t.Errorf("expected :9090, got %s", config.Addr())
	}
	if config.DatabaseURL != "postgres://localhost/reconciler" {
		t.Errorf("unexpected database url %q", config.DatabaseURL)
	}
	if strings.Join(config.Router.AllowOrigins, "|") != "http://a.example|http://b.example" {
		t.Errorf("unexpected origins %v", config.Router.AllowOrigins)
	}
	if config.Router.RequestTimeout != 30*time.Second || config.ShutdownTimeout != 30*time.Second {
		t.Errorf("unexpected timeouts %s and %s", config.Router.RequestTimeout, config.ShutdownTimeout)
	}
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CORS_ORIGINS", "")

	v := viper.New()
	v.Set("max_upload_bytes", -1)
	if _, err := LoadServerConfig(v); err == nil {
		t.Error("expected error for negative upload limit")
	}

	config, err := LoadServerConfig(viper.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", config.Port)
	}
	if len(config.Router.AllowOrigins) != 1 || config.Router.AllowOrigins[0] != "http://localhost:3000" {
		t.Errorf("expected default origin, got %v", config.Router.AllowOrigins)
	}
}
