package kafka

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// LoadEnv загружает конфигурацию из переменных окружения поверх cfg
func LoadEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse kafka env: %w", err)
	}
	return cfg.Validate()
}
