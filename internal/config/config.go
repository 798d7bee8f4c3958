// Package config loads client configuration from pulse.yaml and PULSE_*
// environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	APIBase      string        `json:"api_base" yaml:"api_base" mapstructure:"api_base"`
	SessionFile  string        `json:"session_file" yaml:"session_file" mapstructure:"session_file"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`
	Addr         string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	DiagAddr     string        `json:"diag_addr" yaml:"diag_addr" mapstructure:"diag_addr"`
	Secret       string        `json:"secret" yaml:"secret" mapstructure:"secret"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("pulse")
	v.AddConfigPath(".")
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_base", "http://localhost:3000/api/v1")
	v.SetDefault("session_file", defaultSessionFile())
	v.SetDefault("poll_interval", 3*time.Second)
	v.SetDefault("addr", ":3000")
	v.SetDefault("diag_addr", ":9999")
	v.SetDefault("secret", "pulse-dev-secret")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pulse-session.json"
	}

	return filepath.Join(home, ".pulse", "session.json")
}
