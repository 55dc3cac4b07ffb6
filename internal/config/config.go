// Package config handles configuration loading and defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Default values.
const (
	DefaultPort          = 8080
	DefaultDataFile      = "data.json"
	DefaultSessionSecret = "dev-secret-key-change-me"
	DefaultStorageDriver = "file"
)

// Config holds the full configuration for the API server.
type Config struct {
	Port          int    `toml:"port"`
	DataFile      string `toml:"data_file"`
	SessionSecret string `toml:"session_secret"`

	// StorageDriver selects the document store backend: "file" or "postgres".
	StorageDriver string `toml:"storage_driver"`

	DBHost     string `toml:"db_host"`
	DBPort     string `toml:"db_port"`
	DBUser     string `toml:"db_user"`
	DBPassword string `toml:"db_password"`
	DBName     string `toml:"db_name"`
}

// Load builds the configuration: defaults, then the optional TOML file named
// by TIMETRACK_CONFIG, then environment variable overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          DefaultPort,
		DataFile:      DefaultDataFile,
		SessionSecret: DefaultSessionSecret,
		StorageDriver: DefaultStorageDriver,
	}

	if path := os.Getenv("TIMETRACK_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := os.Getenv("TIMETRACK_DATA_FILE"); v != "" {
		c.DataFile = v
	}
	if v := os.Getenv("TIMETRACK_SESSION_SECRET"); v != "" {
		c.SessionSecret = v
	}
	if v := os.Getenv("TIMETRACK_STORAGE_DRIVER"); v != "" {
		c.StorageDriver = v
	}
	if v := os.Getenv("TIMETRACK_DB_HOST"); v != "" {
		c.DBHost = v
	}
	if v := os.Getenv("TIMETRACK_DB_PORT"); v != "" {
		c.DBPort = v
	}
	if v := os.Getenv("TIMETRACK_DB_USERNAME"); v != "" {
		c.DBUser = v
	}
	if v := os.Getenv("TIMETRACK_DB_PASSWORD"); v != "" {
		c.DBPassword = v
	}
	if v := os.Getenv("TIMETRACK_DB_DATABASE"); v != "" {
		c.DBName = v
	}
	return nil
}

// PostgresDSN assembles the DSN for the postgres store backend.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}
