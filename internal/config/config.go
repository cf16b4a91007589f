// Package config loads server and client settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmynk/receiptsplit/internal/service"
	"github.com/mmynk/receiptsplit/internal/synchronizer"
)

// Server configures cmd/server.
type Server struct {
	Addr       string `env:"RECEIPTSPLIT_ADDR" envDefault:":8080"`
	DBPath     string `env:"RECEIPTSPLIT_DB_PATH" envDefault:"./data/sessions.db"`
	StaticPath string `env:"RECEIPTSPLIT_STATIC_PATH"`

	// JWTSecret signs owner tokens. When empty a random secret is used and
	// tokens do not survive a restart.
	JWTSecret     string        `env:"RECEIPTSPLIT_JWT_SECRET"`
	OwnerTokenTTL time.Duration `env:"RECEIPTSPLIT_OWNER_TOKEN_TTL" envDefault:"720h"`

	MaxParticipants       int `env:"RECEIPTSPLIT_MAX_PARTICIPANTS" envDefault:"20"`
	FreeSessionsPerDevice int `env:"RECEIPTSPLIT_FREE_SESSIONS_PER_DEVICE" envDefault:"0"`
}

// Limits returns the quotas enforced by the session service.
func (s Server) Limits() service.Limits {
	return service.Limits{
		MaxParticipants:       s.MaxParticipants,
		FreeSessionsPerDevice: s.FreeSessionsPerDevice,
	}
}

// Client configures cmd/splitctl.
type Client struct {
	BaseURL      string        `env:"RECEIPTSPLIT_URL" envDefault:"http://localhost:8080"`
	PollInterval time.Duration `env:"RECEIPTSPLIT_POLL_INTERVAL" envDefault:"5s"`
	PauseWindow  time.Duration `env:"RECEIPTSPLIT_PAUSE_WINDOW" envDefault:"15s"`

	// StatePath is the device's local store: device id, participant
	// pointers and owner tokens.
	StatePath string `env:"RECEIPTSPLIT_STATE_PATH" envDefault:"./data/device.db"`
}

// Sync returns the synchronizer polling settings.
func (c Client) Sync() synchronizer.Config {
	return synchronizer.Config{PollInterval: c.PollInterval, PauseWindow: c.PauseWindow}
}

// LoadServer reads the server configuration.
func LoadServer() (Server, error) {
	var cfg Server
	if err := parse(&cfg); err != nil {
		return Server{}, err
	}
	if cfg.OwnerTokenTTL <= 0 {
		return Server{}, fmt.Errorf("RECEIPTSPLIT_OWNER_TOKEN_TTL must be positive")
	}
	if cfg.MaxParticipants < 0 || cfg.FreeSessionsPerDevice < 0 {
		return Server{}, fmt.Errorf("quotas cannot be negative")
	}
	return cfg, nil
}

// LoadClient reads the client configuration.
func LoadClient() (Client, error) {
	var cfg Client
	if err := parse(&cfg); err != nil {
		return Client{}, err
	}
	if cfg.PollInterval <= 0 {
		return Client{}, fmt.Errorf("RECEIPTSPLIT_POLL_INTERVAL must be positive")
	}
	return cfg, nil
}

func parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
