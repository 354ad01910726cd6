// Package config loads credential, store and region settings for the worker.
// Operational knobs with fail-open fallbacks live in internal/infra/worker;
// the settings here are parsed strictly with caarlos0/env struct tags.
package config

import (
	"fmt"

	"vaxslot-notifier/internal/infra/cowin"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadCowin parses the availability API client settings and validates them.
func LoadCowin() (cowin.Config, error) {
	var cfg cowin.Config
	if err := ParseEnv(&cfg); err != nil {
		return cowin.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return cowin.Config{}, fmt.Errorf("availability api config: %w", err)
	}
	return cfg, nil
}
