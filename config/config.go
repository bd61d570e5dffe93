// Package config reads the lumo configuration: built-in defaults, overlaid
// with ~/.lumo/config.yml and finally with LUMO_* environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		Log        LogConfig      `envPrefix:"LOG_"`
		Audio      AudioConfig    `envPrefix:"AUDIO_"`
		FPS        int            `env:"FPS"`
		Resolution int            `env:"RESOLUTION"`
		QueueSize  int            `env:"QUEUE_SIZE"`
		LockAudio  bool           `env:"LOCK_AUDIO"`
		MIDI       MIDIConfig     `envPrefix:"MIDI_"`
		Recovery   RecoveryConfig `envPrefix:"RECOVERY_"`
	}

	LogConfig struct {
		Level  string `env:"LEVEL"`
		Format string `env:"FORMAT"` // text or json
	}

	AudioConfig struct {
		Enabled bool    `env:"ENABLED"`
		Latency int     `env:"LATENCY"` // milliseconds
		Volume  float64 `env:"VOLUME"`  // master gain, 0 to 1
	}

	MIDIConfig struct {
		Input     string `env:"INPUT"` // name prefix of the input device
		TakeFirst bool   `env:"TAKE_FIRST"`
		LiveTrack string `env:"LIVE_TRACK"`
	}

	RecoveryConfig struct {
		Path     string `env:"PATH"`
		Interval int    `env:"INTERVAL"` // seconds, 0 disables autosave
		Keep     int    `env:"KEEP"`
	}
)

// DefaultPath is where Load looks for the configuration file.
const DefaultPath = "~/.lumo/config.yml"

// EnvPrefix prefixes the names of all environment overrides.
const EnvPrefix = "LUMO_"

//go:embed default.yml
var defaultYml []byte

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	if err := yaml.Unmarshal(defaultYml, &c); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return c
}

// Load returns the default configuration overlaid with the file at path and
// the environment. A missing file is not an error. An empty path means
// DefaultPath.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		path = DefaultPath
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return c, fmt.Errorf("cannot resolve config path %v: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return c, fmt.Errorf("cannot read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("invalid config %v: %w", expanded, err)
		}
	}
	if err := c.ApplyEnv(nil); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// ApplyEnv overrides fields from LUMO_* variables in environ, e.g.
// LUMO_LOG_LEVEL or LUMO_RECOVERY_INTERVAL. A nil environ means the process
// environment. Variables that are not set leave their fields alone.
func (c *Config) ApplyEnv(environ map[string]string) error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("fps should be positive, got %v", c.FPS)
	}
	if c.Resolution <= 0 {
		return fmt.Errorf("resolution should be positive, got %v", c.Resolution)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		return fmt.Errorf("volume should be between 0 and 1, got %v", c.Audio.Volume)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Logger returns a logger set up according to the Log section.
func (c Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetLevel(level)
	if c.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

// RecoveryPath returns the recovery database path with ~ expanded.
func (c Config) RecoveryPath() (string, error) {
	return homedir.Expand(c.Recovery.Path)
}

func (c Config) AutosaveInterval() time.Duration {
	return time.Duration(c.Recovery.Interval) * time.Second
}
