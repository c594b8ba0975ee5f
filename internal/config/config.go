// Package config loads twido settings from an optional YAML file overridden
// by TWIDO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone lookups on hosts without a zoneinfo database

	"gopkg.in/yaml.v3"

	"twido/internal/blob"
	"twido/internal/persistence"
	"twido/internal/rewards"
)

// DefaultRespawnInterval is how often a removed decoration may grow back.
const DefaultRespawnInterval = 8 * time.Hour

// Rewards overrides the reward constants; zero values keep the defaults.
type Rewards struct {
	DailyShovelLimit        int      `yaml:"daily_shovel_limit"`
	PickaxeBonusProbability *float64 `yaml:"pickaxe_bonus_probability"`
	RockDropProbability     *float64 `yaml:"rock_drop_probability"`
}

// Config is the full application configuration.
type Config struct {
	UserID          string             `yaml:"user_id"`
	Timezone        string             `yaml:"timezone"`
	ListenAddr      string             `yaml:"listen_addr"`
	LogLevel        string             `yaml:"log_level"`
	RespawnInterval time.Duration      `yaml:"respawn_interval"`
	Rewards         Rewards            `yaml:"rewards"`
	Persistence     persistence.Config `yaml:"persistence"`
	Blob            blob.Config        `yaml:"blob"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:      "127.0.0.1:8787",
		LogLevel:        "info",
		RespawnInterval: DefaultRespawnInterval,
		Persistence: persistence.Config{
			LocalDriver:  persistence.DriverSQLite,
			RemoteDriver: persistence.DriverPostgres,
			SQLitePath:   "twido.db",
		},
		Blob: blob.Config{Driver: blob.DriverFilesystem, FSRoot: "blobdata"},
	}
}

// Load reads path (skipped when empty), applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays:
//
//	TWIDO_USER_ID, TWIDO_TIMEZONE, TWIDO_LISTEN_ADDR, TWIDO_LOG_LEVEL,
//	TWIDO_RESPAWN_INTERVAL (Go duration), TWIDO_PICKAXE_BONUS_PROBABILITY,
//	plus the persistence and blob variables.
func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("TWIDO_USER_ID"); ok {
		c.UserID = v
	}
	if v := os.Getenv("TWIDO_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("TWIDO_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("TWIDO_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TWIDO_RESPAWN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TWIDO_RESPAWN_INTERVAL: %w", err)
		}
		c.RespawnInterval = d
	}
	if v := os.Getenv("TWIDO_PICKAXE_BONUS_PROBABILITY"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TWIDO_PICKAXE_BONUS_PROBABILITY: %w", err)
		}
		c.Rewards.PickaxeBonusProbability = &p
	}
	c.Persistence = persistence.ConfigFromEnv(c.Persistence)
	c.Blob = blob.ConfigFromEnv(c.Blob)
	return nil
}

// Validate rejects out-of-range values.
func (c Config) Validate() error {
	var errs []error
	if c.RespawnInterval <= 0 {
		errs = append(errs, fmt.Errorf("respawn_interval must be positive"))
	}
	for name, p := range map[string]*float64{
		"pickaxe_bonus_probability": c.Rewards.PickaxeBonusProbability,
		"rock_drop_probability":     c.Rewards.RockDropProbability,
	} {
		if p != nil && (*p < 0 || *p > 1) {
			errs = append(errs, fmt.Errorf("%s must be within [0,1]", name))
		}
	}
	if c.Rewards.DailyShovelLimit < 0 {
		errs = append(errs, fmt.Errorf("daily_shovel_limit must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves Timezone; empty means the system zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// RewardsConfig merges the overrides onto rewards.DefaultConfig.
func (c Config) RewardsConfig() rewards.Config {
	out := rewards.DefaultConfig()
	if c.Rewards.DailyShovelLimit > 0 {
		out.DailyShovelLimit = c.Rewards.DailyShovelLimit
	}
	if p := c.Rewards.PickaxeBonusProbability; p != nil {
		out.PickaxeBonusProbability = *p
	}
	if p := c.Rewards.RockDropProbability; p != nil {
		out.RockDropProbability = *p
	}
	return out
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
