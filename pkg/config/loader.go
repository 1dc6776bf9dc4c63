package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into cfg using `env` and `envDefault`
// struct tags. A required variable that is missing is reported by name.
func Load(cfg any) error {
	if err := env.ParseWithOptions(cfg, env.Options{}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
