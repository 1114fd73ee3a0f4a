package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"lunaplay/pkg/system"
)

// Environment keys.
const (
	EnvDevice      = "LUNAPLAY_DEVICE"
	EnvFirmware    = "LUNAPLAY_FIRMWARE"
	EnvPollTimeout = "LUNAPLAY_POLL_TIMEOUT"
	EnvLogLevel    = "LOG_LEVEL"
)

// Settings are the process defaults that command line flags may override.
type Settings struct {
	Device      string
	Firmware    string
	PollTimeout time.Duration
	LogLevel    string
}

// Load reads an optional .env file and then the environment. A missing .env
// is not an error.
func Load(envFile string) (Settings, error) {
	if envFile != "" {
		if err := system.LoadEnv(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds Settings from a lookup function.
func FromEnv(getenv func(string) string) (Settings, error) {
	s := Settings{
		Device:   getenv(EnvDevice),
		Firmware: getenv(EnvFirmware),
		LogLevel: getenv(EnvLogLevel),
	}
	if v := getenv(EnvPollTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", EnvPollTimeout, err)
		}
		s.PollTimeout = d
	}
	return s, nil
}
