package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvSourceRPC   = "XCHAIN_SOURCE_RPC"
	EnvTargetRPC   = "XCHAIN_TARGET_RPC"
	EnvHomeNetwork = "XCHAIN_HOME_NETWORK"
	EnvJournalDSN  = "XCHAIN_JOURNAL_DSN"
	EnvLogFile     = "XCHAIN_LOG_FILE"
)

// LoadEnv loads environment variables from a .env file when one exists
func LoadEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides config values with any environment variables that are set
func ApplyEnv(cfg *Config) {
	cfg.Engine.SourceRPC = GetEnvWithDefault(EnvSourceRPC, cfg.Engine.SourceRPC)
	cfg.Engine.TargetRPC = GetEnvWithDefault(EnvTargetRPC, cfg.Engine.TargetRPC)
	cfg.Engine.HomeNetwork = GetEnvWithDefault(EnvHomeNetwork, cfg.Engine.HomeNetwork)
	cfg.Journal.DSN = GetEnvWithDefault(EnvJournalDSN, cfg.Journal.DSN)
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
