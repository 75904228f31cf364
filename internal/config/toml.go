// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Play     PlayConfig        `toml:"play"`
	Practice PracticeConfig    `toml:"practice"`
	Keys     map[string]string `toml:"keys"`
	Fetch    FetchConfig       `toml:"fetch"`
	Serve    ServeConfig       `toml:"serve"`
}

// PlayConfig maps play-session settings.
type PlayConfig struct {
	SongsDir   *string  `toml:"songs-dir"`
	Difficulty *string  `toml:"difficulty"`
	PerfectMs  *float64 `toml:"perfect-ms"`
	GreatMs    *float64 `toml:"great-ms"`
	GoodMs     *float64 `toml:"good-ms"`
	MaxMs      *float64 `toml:"max-ms"`
	Tolerance  *float64 `toml:"tolerance"`
	Metronome  *bool    `toml:"metronome"`
	NoBGM      *bool    `toml:"no-bgm"`
	MIDIPort   *string  `toml:"midi-port"`
}

// PracticeConfig maps practice-generation settings.
type PracticeConfig struct {
	Measures   *int     `toml:"measures"`
	BPM        *float64 `toml:"bpm"`
	Density    *float64 `toml:"density"`
	Drums      *string  `toml:"drums"`
	FocusWeak  *bool    `toml:"focus-weak"`
	WeakTop    *int     `toml:"weak-top"`
	WeakFactor *float64 `toml:"weak-factor"`
	WeakWindow *int     `toml:"weak-window"`
}

// FetchConfig maps chart-server client settings.
type FetchConfig struct {
	ServerURL *string `toml:"server-url"`
}

// ServeConfig maps chart-server settings.
type ServeConfig struct {
	Port     *int    `toml:"port"`
	SongsDir *string `toml:"songs-dir"`
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
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
