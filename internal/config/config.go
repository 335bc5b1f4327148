// Package config loads the service configuration from a TOML file with
// environment overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Server struct {
	Port      string `toml:"port"`
	JWTSecret string `toml:"jwt_secret"`
}

type Database struct {
	Path string `toml:"path"`
}

// Platform identifies the platform-internal organizations and the
// organizations allowed to request virtual cards.
type Platform struct {
	OrgID         string   `toml:"org_id"`
	CardOrgID     string   `toml:"card_org_id"`
	CardAllowList []string `toml:"card_allow_list"`
}

type FX struct {
	Simulated      bool   `toml:"simulated"`
	Endpoint       string `toml:"endpoint"`
	Token          string `toml:"token"`
	ProfileID      int64  `toml:"profile_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type Issuing struct {
	Simulated   bool   `toml:"simulated"`
	CardDetails string `toml:"card_details"`
}

type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	Platform Platform `toml:"platform"`
	FX       FX       `toml:"fx"`
	Issuing  Issuing  `toml:"issuing"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:      "8080",
			JWTSecret: "simard-secret-key",
		},
		Database: Database{
			Path: "simard.db",
		},
		Platform: Platform{
			OrgID:     "0x" + strings.Repeat("5", 64),
			CardOrgID: "0x" + strings.Repeat("c", 64),
		},
		FX: FX{
			Simulated:      true,
			TimeoutSeconds: 10,
		},
		Issuing: Issuing{
			Simulated: true,
		},
	}
}

// Load reads the configuration from path when it exists, then applies
// environment overrides. A missing file falls back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if cfg.Platform.OrgID == "" || cfg.Platform.CardOrgID == "" {
		return nil, fmt.Errorf("platform organization ids must be configured")
	}
	return cfg, nil
}

// CardAllowed reports whether an organization may request virtual cards.
func (c *Config) CardAllowed(org string) bool {
	for _, allowed := range c.Platform.CardAllowList {
		if allowed == org {
			return true
		}
	}
	return false
}

// FXTimeout returns the pricing call deadline.
func (c *Config) FXTimeout() time.Duration {
	if c.FX.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.FX.TimeoutSeconds) * time.Second
}
