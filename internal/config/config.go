// Package config reads CLI configuration from OFFLINEWALLET_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"

	"github.com/roach88/offlinewallet/internal/keys"
)

// EnvPrefix prefixes every variable.
const EnvPrefix = "OFFLINEWALLET"

// Variable names.
const (
	EnvJournalDriver = "OFFLINEWALLET_JOURNAL_DRIVER"
	EnvJournalPath   = "OFFLINEWALLET_JOURNAL_PATH"
	EnvJournalDSN    = "OFFLINEWALLET_JOURNAL_DSN"
	EnvPolicyFile    = "OFFLINEWALLET_POLICY_FILE"
	EnvKeySeed       = "OFFLINEWALLET_KEY_SEED"
	EnvLogLevel      = "OFFLINEWALLET_LOG_LEVEL"
)

// Journal drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the resolved CLI configuration.
type Config struct {
	JournalDriver string `envconfig:"JOURNAL_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres memory"`
	JournalPath   string `envconfig:"JOURNAL_PATH" default:"offlinewallet.db" validate:"required_if=JournalDriver sqlite"`
	JournalDSN    string `envconfig:"JOURNAL_DSN" validate:"required_if=JournalDriver postgres"`
	PolicyFile    string `envconfig:"POLICY_FILE"`
	KeySeed       string `envconfig:"KEY_SEED" default:"offlinewallet-demo-seed" validate:"min=16"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if tag := f.Tag.Get("envconfig"); tag != "" {
			return EnvPrefix + "_" + tag
		}
		return f.Name
	})
	return v
}

// Load reads the environment. When envFile is set it must exist and its
// values are added to the environment first; otherwise a .env in the
// working directory is used if present. Variables already set win over
// file values.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by an empty environment.
func Default() Config {
	return Config{
		JournalDriver: DriverSQLite,
		JournalPath:   "offlinewallet.db",
		KeySeed:       keys.DemoSeed,
		LogLevel:      "info",
	}
}

// Validate checks field constraints. Each violation is reported; the
// result combines them with multierr.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	var combined error
	for _, fe := range fieldErrs {
		combined = multierr.Append(combined, fmt.Errorf("%s %s", fe.Field(), validationMessage(fe)))
	}
	return combined
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required_if":
		return "is required when " + strings.Replace(fe.Param(), "JournalDriver ", "driver is ", 1)
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values give info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
