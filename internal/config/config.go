package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"tradedays/internal/errors"
	"tradedays/pkg/contracts/domain"
)

// Config represents the complete run configuration. It is constructed once
// per run and passed by reference into each stage; there is no ambient
// global configuration state.
type Config struct {
	Input          InputConfig          `yaml:"input" envconfig:"INPUT"`
	Sessions       []SessionConfig      `yaml:"sessions" ignored:"true"`
	Classification ClassificationConfig `yaml:"classification" envconfig:"CLASSIFICATION"`
	Validation     ValidationConfig     `yaml:"validation" envconfig:"VALIDATION"`
	Paths          PathsConfig          `yaml:"paths" envconfig:"PATHS"`
	Logging        LoggingConfig        `yaml:"logging" envconfig:"LOGGING"`
}

// InputConfig describes the raw export format. The exact column order and
// delimiter vary with the platform's export settings, so none of this is
// hardcoded.
type InputConfig struct {
	Delimiter string   `yaml:"delimiter" envconfig:"DELIMITER" validate:"required,len=1"`
	Columns   []string `yaml:"columns" ignored:"true" validate:"required,min=2"`
	// TimeLayout is the Go reference layout of the timestamp column.
	TimeLayout string `yaml:"time_layout" envconfig:"TIME_LAYOUT" validate:"required"`
	// SourceTimezone is the IANA zone the export was written in;
	// ReferenceTimezone is the zone all timestamps are converted to for
	// session partitioning. One timezone pair applies to the whole run.
	SourceTimezone    string `yaml:"source_timezone" envconfig:"SOURCE_TIMEZONE" validate:"required"`
	ReferenceTimezone string `yaml:"reference_timezone" envconfig:"REFERENCE_TIMEZONE" validate:"required"`
}

// SessionConfig is one named session window with "HH:MM" boundaries in the
// reference timezone. A window whose end is not after its start wraps
// midnight.
type SessionConfig struct {
	Name  string `yaml:"name" validate:"required"`
	Start string `yaml:"start" validate:"required"`
	End   string `yaml:"end" validate:"required"`
}

// Window converts the session config to a domain window.
func (s SessionConfig) Window() (domain.SessionWindow, error) {
	start, err := parseClock(s.Start)
	if err != nil {
		return domain.SessionWindow{}, fmt.Errorf("session %s start: %w", s.Name, err)
	}
	end, err := parseClock(s.End)
	if err != nil {
		return domain.SessionWindow{}, fmt.Errorf("session %s end: %w", s.Name, err)
	}
	return domain.SessionWindow{Name: s.Name, Start: start, End: end}, nil
}

// RuleConfig is one ordered classification rule. A day matches when its
// metric satisfies every bound that is set; the first matching rule wins.
// Percentile bounds are resolved against the dataset, absolute bounds are
// taken as-is.
type RuleConfig struct {
	Label         string   `yaml:"label" validate:"required"`
	MinPercentile *float64 `yaml:"min_percentile,omitempty" validate:"omitempty,min=0,max=100"`
	MaxPercentile *float64 `yaml:"max_percentile,omitempty" validate:"omitempty,min=0,max=100"`
	MinValue      *float64 `yaml:"min_value,omitempty"`
	MaxValue      *float64 `yaml:"max_value,omitempty"`
}

// ClassificationConfig holds classifier thresholds and rule order.
// Thresholds are operator-tunable domain inputs, never hardcoded.
type ClassificationConfig struct {
	// Metric selects the day metric the rules evaluate.
	Metric string `yaml:"metric" envconfig:"METRIC" validate:"required,oneof=range volatility bar_range_sum"`
	// MinBarsPerDay excludes thin days from classification; excluded days
	// are reported separately.
	MinBarsPerDay   int          `yaml:"min_bars_per_day" envconfig:"MIN_BARS_PER_DAY" validate:"min=1"`
	MinStreakLength int          `yaml:"min_streak_length" envconfig:"MIN_STREAK_LENGTH" validate:"min=2"`
	TopDays         int          `yaml:"top_days" envconfig:"TOP_DAYS" validate:"min=1"`
	Rules           []RuleConfig `yaml:"rules" ignored:"true" validate:"required,min=1,dive"`
}

// Duration wraps time.Duration so "5m"-style values parse from both the
// YAML file and environment overrides.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	return d.Decode(raw)
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ValidationConfig holds ingestion tolerances.
type ValidationConfig struct {
	// PriceMin/PriceMax bound plausible prices; zero max means unbounded.
	PriceMin float64 `yaml:"price_min" envconfig:"PRICE_MIN"`
	PriceMax float64 `yaml:"price_max" envconfig:"PRICE_MAX"`
	// MaxGap flags (but never aborts on) holes between consecutive bars.
	MaxGap Duration `yaml:"max_gap" envconfig:"MAX_GAP" validate:"required"`
	// MaxErrors caps how many violations a validation failure enumerates.
	MaxErrors    int  `yaml:"max_errors" envconfig:"MAX_ERRORS" validate:"min=1"`
	CheckHighLow bool `yaml:"check_high_low" envconfig:"CHECK_HIGH_LOW"`
	CheckOHLC    bool `yaml:"check_ohlc" envconfig:"CHECK_OHLC"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	CacheDir   string `yaml:"cache_dir" envconfig:"CACHE_DIR" validate:"required"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR" validate:"required"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// Load builds the configuration: defaults, then the YAML file (explicit path
// or the first of the common locations), then TRADEDAYS_* environment
// overrides, then validation.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, errors.NewConfigError("read config file", err).WithContext("path", configFile)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewConfigError("parse config file", err).WithContext("path", configFile)
		}
	}

	if err := envconfig.Process("TRADEDAYS", cfg); err != nil {
		return nil, errors.NewConfigError("apply environment overrides", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints plus the cross-field invariants the tag
// validator cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.NewConfigError("config validation failed", err)
	}

	if _, err := time.LoadLocation(c.Input.SourceTimezone); err != nil {
		return errors.NewConfigError("invalid source timezone", err).WithContext("zone", c.Input.SourceTimezone)
	}
	if _, err := time.LoadLocation(c.Input.ReferenceTimezone); err != nil {
		return errors.NewConfigError("invalid reference timezone", err).WithContext("zone", c.Input.ReferenceTimezone)
	}

	if err := c.validateColumns(); err != nil {
		return err
	}
	if err := c.validateSessions(); err != nil {
		return err
	}
	return c.validateRules()
}

func (c *Config) validateColumns() error {
	seen := make(map[string]bool, len(c.Input.Columns))
	for _, col := range c.Input.Columns {
		if seen[col] {
			return errors.NewConfigError("duplicate input column", nil).WithContext("column", col)
		}
		seen[col] = true
	}
	for _, required := range []string{"datetime", "close"} {
		if !seen[required] {
			return errors.NewConfigError("missing required input column", nil).WithContext("column", required)
		}
	}
	return nil
}

// validateSessions parses every window and rejects names that repeat or
// windows that overlap, so partitioning is exhaustive and non-overlapping.
func (c *Config) validateSessions() error {
	if len(c.Sessions) == 0 {
		return errors.NewConfigError("at least one session window must be configured", nil)
	}

	windows, err := c.SessionWindows()
	if err != nil {
		return err
	}

	names := make(map[string]bool, len(windows))
	for _, w := range windows {
		if names[w.Name] {
			return errors.NewConfigError("duplicate session window name", nil).WithContext("window", w.Name)
		}
		names[w.Name] = true
		if w.Span() == 24*60 {
			return errors.NewConfigError("session window covers the full day", nil).WithContext("window", w.Name)
		}
	}

	// Minute-level sweep keeps the overlap check obvious for wrapping windows.
	for minute := 0; minute < 24*60; minute++ {
		owner := ""
		for _, w := range windows {
			if !w.Contains(minute) {
				continue
			}
			if owner != "" {
				return errors.NewConfigError("session windows overlap", nil).
					WithContext("first", owner).
					WithContext("second", w.Name).
					WithContext("minute", fmt.Sprintf("%02d:%02d", minute/60, minute%60))
			}
			owner = w.Name
		}
	}
	return nil
}

func (c *Config) validateRules() error {
	labels := make(map[string]bool, len(c.Classification.Rules))
	for _, rule := range c.Classification.Rules {
		label := strings.ToUpper(strings.TrimSpace(rule.Label))
		if label == domain.LabelUnclassified {
			return errors.NewConfigError("rule label is reserved", nil).WithContext("label", rule.Label)
		}
		if labels[label] {
			return errors.NewConfigError("duplicate rule label", nil).WithContext("label", rule.Label)
		}
		labels[label] = true
		if rule.MinPercentile != nil && rule.MaxPercentile != nil && *rule.MinPercentile >= *rule.MaxPercentile {
			return errors.NewConfigError("rule percentile bounds inverted", nil).WithContext("label", rule.Label)
		}
		if rule.MinValue != nil && rule.MaxValue != nil && *rule.MinValue >= *rule.MaxValue {
			return errors.NewConfigError("rule value bounds inverted", nil).WithContext("label", rule.Label)
		}
	}
	return nil
}

// SessionWindows returns the configured windows in configured order.
func (c *Config) SessionWindows() ([]domain.SessionWindow, error) {
	windows := make([]domain.SessionWindow, 0, len(c.Sessions))
	for _, s := range c.Sessions {
		w, err := s.Window()
		if err != nil {
			return nil, errors.NewConfigError("invalid session window", err).WithContext("window", s.Name)
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// Labels returns the configured rule labels in rule order.
func (c *Config) Labels() []string {
	labels := make([]string, 0, len(c.Classification.Rules))
	for _, r := range c.Classification.Rules {
		labels = append(labels, strings.ToUpper(strings.TrimSpace(r.Label)))
	}
	return labels
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// findConfigFile returns the path to the config file
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return "" // No config file found, use defaults and env vars only
}

func ptr(v float64) *float64 { return &v }

// Default returns the default configuration. Session boundaries follow the
// futures convention in New York time; the Europe window hands off to NY at
// the equity open so the three windows never overlap.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Delimiter:         ";",
			Columns:           []string{"datetime", "open", "high", "low", "close", "volume"},
			TimeLayout:        "20060102 150405",
			SourceTimezone:    "America/New_York",
			ReferenceTimezone: "America/New_York",
		},
		Sessions: []SessionConfig{
			{Name: "ASIA", Start: "19:00", End: "03:00"},
			{Name: "EUROPE", Start: "03:00", End: "09:30"},
			{Name: "NY", Start: "09:30", End: "17:00"},
		},
		Classification: ClassificationConfig{
			Metric:          "range",
			MinBarsPerDay:   30,
			MinStreakLength: 3,
			TopDays:         5,
			Rules: []RuleConfig{
				{Label: "STRONG", MinPercentile: ptr(66.67)},
				{Label: "MODERATE", MinPercentile: ptr(33.33)},
				{Label: "LATERAL", MaxPercentile: ptr(33.33)},
			},
		},
		Validation: ValidationConfig{
			PriceMin:     0,
			PriceMax:     0,
			MaxGap:       Duration(5 * time.Minute),
			MaxErrors:    20,
			CheckHighLow: true,
			CheckOHLC:    true,
		},
		Paths: PathsConfig{
			DataDir:    "data/raw",
			CacheDir:   "data/processed",
			ReportsDir: "reports",
			LogsDir:    "logs",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/tradedays.log",
		},
	}
}
