// Package config loads service configuration from defaults, an optional YAML
// file, CRACKGOV_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables; the rest maps "_" to ".",
// so CRACKGOV_DATABASE_DSN sets database.dsn.
const EnvPrefix = "CRACKGOV_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Import   ImportConfig   `koanf:"import"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// RateLimit is the sustained number of requests per second per owner.
	RateLimit float64 `koanf:"ratelimit" validate:"gt=0"`
	Burst     int     `koanf:"burst" validate:"gte=1"`
	// MaxClients bounds how many owners' limiters are kept in memory.
	MaxClients int `koanf:"maxclients" validate:"gte=1"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type ImportConfig struct {
	ReposDir string `koanf:"reposdir" validate:"required"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:       ":8080",
			RateLimit:  5,
			Burst:      20,
			MaxClients: 10000,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "crackgov.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Import: ImportConfig{
			ReposDir: "repos",
		},
	}
}

// FlagKeys maps command-line flag names to config keys. Flags not listed here
// are not configuration.
var FlagKeys = map[string]string{
	"addr":      "server.addr",
	"driver":    "database.driver",
	"db":        "database.dsn",
	"log-level": "log.level",
	"repos-dir": "import.reposdir",
}

// Load builds the configuration. A missing file at path is not an error; flags
// only override when explicitly set. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" && Exists(path) {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
