package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Ledger struct {
	// CreditExcessToAdvance adds an unallocated payment remainder to the counterparty's advance payment.
	CreditExcessToAdvance bool `yaml:"credit_excess_to_advance"`
}

type Config struct {
	HTTPAddr      string        `yaml:"http_addr"`
	Database      Database      `yaml:"database"`
	Timezone      string        `yaml:"timezone"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Ledger        Ledger        `yaml:"ledger"`
}

// Load builds the configuration from defaults, an optional .env file, the YAML file named by
// LENDBOOK_CONFIG and finally individual environment variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Config{
		HTTPAddr:      ":8080",
		Database:      Database{Driver: DriverSQLite, DSN: "lendbook.db"},
		Timezone:      "Local",
		SweepInterval: time.Hour,
	}

	if path := os.Getenv("LENDBOOK_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.Database.Driver = getenvDefault("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getenvDefault("DATABASE_URL", cfg.Database.DSN)
	cfg.Timezone = getenvDefault("TIMEZONE", cfg.Timezone)
	cfg.SweepInterval = getenvDuration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.Ledger.CreditExcessToAdvance = getenvBool("CREDIT_EXCESS_TO_ADVANCE", cfg.Ledger.CreditExcessToAdvance)

	return cfg, cfg.Validate()
}

// Validate checks the fields main depends on.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: database dsn required")
	}
	if c.SweepInterval < 0 {
		return errors.New("config: sweep interval must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the timezone interest accrual reads calendar days in.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
