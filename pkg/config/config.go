// Package config loads the shell's configuration: a YAML file on disk,
// overridable by environment variables and CLI flags, in that precedence
// order (flags win, then env, then file, then the built-in default).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arcuru/eidetica/pkg/log"
)

// DefaultDatabaseFile is the on-disk filename the shell opens when none is
// given on the command line.
const DefaultDatabaseFile = "eidetica.db"

// DefaultKeyName is the signing key the shell mints on first run if the
// keystore doesn't already have one.
const DefaultKeyName = "default"

// Config is the shell's full configuration surface.
type Config struct {
	DatabaseFile string `yaml:"database_file"`
	KeyName      string `yaml:"key_name"`
	LogLevel     string `yaml:"log_level"`
	LogJSON      bool   `yaml:"log_json"`
}

// Default returns the built-in configuration used when no file, env var, or
// flag supplies a value.
func Default() Config {
	return Config{
		DatabaseFile: DefaultDatabaseFile,
		KeyName:      DefaultKeyName,
		LogLevel:     string(log.InfoLevel),
		LogJSON:      false,
	}
}

// Load reads path as YAML over Default(), then applies EIDETICA_-prefixed
// environment overrides. A missing file is not an error; Load returns
// Default() with environment overrides applied.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through with defaults
		case err != nil:
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EIDETICA_DATABASE_FILE"); v != "" {
		cfg.DatabaseFile = v
	}
	if v := os.Getenv("EIDETICA_KEY_NAME"); v != "" {
		cfg.KeyName = v
	}
	if v := os.Getenv("EIDETICA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("EIDETICA_LOG_JSON"); v == "true" || v == "1" {
		cfg.LogJSON = true
	}
}

// ApplyFlagOverrides overrides cfg's fields with any flag value the caller
// explicitly set. Called from cmd/eidetica after cobra has parsed argv, so
// flags take final precedence over file and environment.
func ApplyFlagOverrides(cfg *Config, databaseFile, keyName, logLevel string, logJSON bool, logJSONSet bool) {
	if databaseFile != "" {
		cfg.DatabaseFile = databaseFile
	}
	if keyName != "" {
		cfg.KeyName = keyName
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logJSONSet {
		cfg.LogJSON = logJSON
	}
}
