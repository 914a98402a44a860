// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Store  StoreConfig  `toml:"store"`
	Quiz   QuizConfig   `toml:"quiz"`
	Client ClientConfig `toml:"client"`
	Log    LogConfig    `toml:"log"`
}

// StoreConfig maps persistence settings.
type StoreConfig struct {
	Path  *string `toml:"path"`
	Scope *string `toml:"scope"`
}

// QuizConfig maps quiz settings.
type QuizConfig struct {
	Category *string `toml:"category"`
	Choices  *int    `toml:"choices"`
}

// ClientConfig maps tab settings.
type ClientConfig struct {
	ReadyTimeout *string `toml:"ready-timeout"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// ReadyTimeoutDuration parses client.ready-timeout. ok is false when unset.
func (c FileConfig) ReadyTimeoutDuration() (d time.Duration, ok bool, err error) {
	if c.Client.ReadyTimeout == nil {
		return 0, false, nil
	}
	d, err = time.ParseDuration(*c.Client.ReadyTimeout)
	if err != nil {
		return 0, false, fmt.Errorf("invalid client.ready-timeout: %w", err)
	}
	if d <= 0 {
		return 0, false, fmt.Errorf("client.ready-timeout must be positive")
	}
	return d, true, nil
}

func (c FileConfig) validate() error {
	if c.Store.Scope != nil && *c.Store.Scope == "" {
		return fmt.Errorf("store.scope must not be empty")
	}
	if c.Quiz.Choices != nil && (*c.Quiz.Choices < 2 || *c.Quiz.Choices > 8) {
		return fmt.Errorf("quiz.choices must be between 2 and 8")
	}
	if _, _, err := c.ReadyTimeoutDuration(); err != nil {
		return err
	}
	return nil
}
