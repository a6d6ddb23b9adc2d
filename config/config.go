// Package config loads forestd's settings via viper, the same library the
// rest of this corpus's services use for layered config (flags, env,
// defaults) — see SPEC_FULL.md §4.7.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Settings holds everything forestd needs to start.
type Settings struct {
	DatabaseURL   string
	Environment   string
	Host          string
	Port          int
	CORSOrigins   []string
	DefaultTenant string
}

// Load reads settings from environment variables prefixed FOREST_, flags
// already bound to v, and sane defaults.
func Load(v *viper.Viper) (Settings, error) {
	v.SetEnvPrefix("forest")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("database_url", "sqlite://forest.db")
	v.SetDefault("environment", "development")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("default_tenant", "default")

	return Settings{
		DatabaseURL:   v.GetString("database_url"),
		Environment:   v.GetString("environment"),
		Host:          v.GetString("host"),
		Port:          v.GetInt("port"),
		CORSOrigins:   v.GetStringSlice("cors_origins"),
		DefaultTenant: v.GetString("default_tenant"),
	}, nil
}

// IsProduction reports whether s.Environment names the production
// environment, gating bulk-load and delete-tenant per spec §7.
func (s Settings) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}
