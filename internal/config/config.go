package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port           int    `env:"PORT" envDefault:"8080"`
	RedisURL       string `env:"REDIS_URL,required"`
	RoomTTLSeconds int    `env:"ROOM_TTL_SECONDS" envDefault:"600"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
}

func (c *Config) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.RoomTTLSeconds <= 0 {
		return fmt.Errorf("ROOM_TTL_SECONDS must be positive, got %d", c.RoomTTLSeconds)
	}

	if isProduction {
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if !c.CookieSecure {
			log.Warn().Msg("COOKIE_SECURE is false in production: session tokens will be sent over plain HTTP")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
