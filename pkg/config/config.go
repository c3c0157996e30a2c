// Package config loads harness configuration from a file and the
// environment.
//
// Every key can be set through an X1H_ prefixed variable with dots
// replaced by underscores, e.g. X1H_RENT_BURN_PERCENT.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/log"
	"github.com/fortiblox/X1-Harness/pkg/svm"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
	"github.com/fortiblox/X1-Harness/pkg/svm/loader"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "X1H"

// Fixture backends.
const (
	BackendBolt   = "bolt"
	BackendBadger = "badger"
)

// ErrConfigInvalid is returned by Validate.
var ErrConfigInvalid = errors.New("invalid configuration")

// Config is the harness configuration.
type Config struct {
	ComputeUnitLimit uint64        `mapstructure:"compute_unit_limit"`
	ProgramCacheSize int           `mapstructure:"program_cache_size"`
	Rent             RentConfig    `mapstructure:"rent"`
	Errors           ErrorsConfig  `mapstructure:"errors"`
	Log              LogConfig     `mapstructure:"log"`
	Fixtures         FixtureConfig `mapstructure:"fixtures"`
}

// RentConfig holds the rent parameters.
type RentConfig struct {
	LamportsPerByteYear uint64  `mapstructure:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `mapstructure:"exemption_threshold"`
}

// ErrorsConfig selects which error kinds count as instruction class.
type ErrorsConfig struct {
	InstructionKinds []string `mapstructure:"instruction_kinds"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FixtureConfig selects where captured fixtures are stored.
type FixtureConfig struct {
	// Backend is "bolt" or "badger".
	Backend string `mapstructure:"backend"`
	// Path is the database file (bolt) or directory (badger). An empty
	// badger path keeps fixtures in memory.
	Path     string `mapstructure:"path"`
	Compress bool   `mapstructure:"compress"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rent := accounts.DefaultRent()
	kinds := instruction.DefaultPolicy().InstructionKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}

	return &Config{
		ComputeUnitLimit: svm.CUDefault,
		ProgramCacheSize: loader.DefaultCacheSize,
		Rent: RentConfig{
			LamportsPerByteYear: rent.LamportsPerByteYear,
			ExemptionThreshold:  rent.ExemptionThreshold,
		},
		Errors: ErrorsConfig{InstructionKinds: names},
		Log:    LogConfig{Level: "info", Format: log.FormatText},
		Fixtures: FixtureConfig{
			Backend:  BackendBolt,
			Path:     "fixtures.db",
			Compress: true,
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path reads the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("compute_unit_limit", d.ComputeUnitLimit)
	v.SetDefault("program_cache_size", d.ProgramCacheSize)
	v.SetDefault("rent.lamports_per_byte_year", d.Rent.LamportsPerByteYear)
	v.SetDefault("rent.exemption_threshold", d.Rent.ExemptionThreshold)
	v.SetDefault("errors.instruction_kinds", d.Errors.InstructionKinds)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("fixtures.backend", d.Fixtures.Backend)
	v.SetDefault("fixtures.path", d.Fixtures.Path)
	v.SetDefault("fixtures.compress", d.Fixtures.Compress)
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.ComputeUnitLimit == 0 || c.ComputeUnitLimit > svm.CUMax {
		return errors.Wrapf(ErrConfigInvalid, "compute_unit_limit must be in 1..%d, got %d", svm.CUMax, c.ComputeUnitLimit)
	}
	if c.ProgramCacheSize <= 0 {
		return errors.Wrapf(ErrConfigInvalid, "program_cache_size must be positive, got %d", c.ProgramCacheSize)
	}
	if c.Rent.ExemptionThreshold < 0 {
		return errors.Wrapf(ErrConfigInvalid, "rent.exemption_threshold must not be negative")
	}
	for _, name := range c.Errors.InstructionKinds {
		if _, err := instruction.ParseKind(name); err != nil {
			return errors.Wrapf(ErrConfigInvalid, "errors.instruction_kinds: %v", err)
		}
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			return errors.Wrapf(ErrConfigInvalid, "log.level: %v", err)
		}
	}
	switch c.Log.Format {
	case "", log.FormatText, log.FormatJSON:
	default:
		return errors.Wrapf(ErrConfigInvalid, "log.format %q", c.Log.Format)
	}
	switch c.Fixtures.Backend {
	case BackendBolt:
		if c.Fixtures.Path == "" {
			return errors.Wrapf(ErrConfigInvalid, "fixtures.path is required for the bolt backend")
		}
	case BackendBadger:
	default:
		return errors.Wrapf(ErrConfigInvalid, "fixtures.backend %q", c.Fixtures.Backend)
	}
	return nil
}

// ApplyLog configures pkg/log from the log section.
func (c *Config) ApplyLog() error {
	return log.Setup(c.Log.Level, c.Log.Format)
}
