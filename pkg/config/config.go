// Package config loads the agent settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jiangweiming/opendial/pkg/speech"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string `yaml:"log_level"`

	Audio struct {
		SampleRate int `yaml:"sample_rate"`
		BitDepth   int `yaml:"bit_depth"`
		Channels   int `yaml:"channels"`
	} `yaml:"audio"`

	VAD struct {
		Enabled         bool    `yaml:"enabled"`
		VolumeThreshold float64 `yaml:"volume_threshold"`
		MinDurationMS   int     `yaml:"min_duration_ms"`
	} `yaml:"vad"`

	Variables struct {
		UserSpeech   string `yaml:"user_speech"`
		SystemSpeech string `yaml:"system_speech"`
	} `yaml:"variables"`

	// SaveSpeechPath, when set, is where captured utterances are written
	// as WAV files.
	SaveSpeechPath string `yaml:"save_speech_path"`

	Synth struct {
		Host string `yaml:"host"`
	} `yaml:"synth"`
}

// Default returns the settings used when no config file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.LogLevel = "info"
	cfg.Audio.SampleRate = 16000
	cfg.Audio.BitDepth = 16
	cfg.Audio.Channels = 1
	cfg.VAD.Enabled = true
	cfg.VAD.VolumeThreshold = 250
	cfg.VAD.MinDurationMS = 300
	cfg.Variables.UserSpeech = "s_u"
	cfg.Variables.SystemSpeech = "s_m"
	return cfg
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, filling unset fields from
// the defaults, and validates the result. Useful in tests where configs
// are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.BitDepth != 8 && cfg.Audio.BitDepth != 16 {
		errs = append(errs, fmt.Errorf("audio.bit_depth %d is invalid; valid values: 8, 16", cfg.Audio.BitDepth))
	}
	if cfg.Audio.Channels <= 0 {
		errs = append(errs, fmt.Errorf("audio.channels %d must be positive", cfg.Audio.Channels))
	}
	if cfg.VAD.VolumeThreshold <= 0 {
		errs = append(errs, fmt.Errorf("vad.volume_threshold %g must be positive", cfg.VAD.VolumeThreshold))
	}
	if cfg.VAD.MinDurationMS < 0 {
		errs = append(errs, fmt.Errorf("vad.min_duration_ms %d must not be negative", cfg.VAD.MinDurationMS))
	}
	if cfg.Variables.UserSpeech == "" {
		errs = append(errs, errors.New("variables.user_speech must not be empty"))
	}
	if cfg.Variables.SystemSpeech == "" {
		errs = append(errs, errors.New("variables.system_speech must not be empty"))
	}
	if cfg.Variables.UserSpeech == cfg.Variables.SystemSpeech {
		errs = append(errs, errors.New("variables.user_speech and variables.system_speech must differ"))
	}

	return errors.Join(errs...)
}

// Format returns the audio format the devices should negotiate.
func (c *Config) Format() speech.Format {
	return speech.Format{
		SampleRate: c.Audio.SampleRate,
		BitDepth:   c.Audio.BitDepth,
		Channels:   c.Audio.Channels,
	}
}

// SpeechConfig maps the settings onto the audio module configuration.
func (c *Config) SpeechConfig() speech.Config {
	sc := speech.DefaultConfig()
	sc.UserSpeechVar = c.Variables.UserSpeech
	sc.SystemSpeechVar = c.Variables.SystemSpeech
	sc.VolumeThreshold = c.VAD.VolumeThreshold
	sc.MinDuration = time.Duration(c.VAD.MinDurationMS) * time.Millisecond
	sc.SavePath = c.SaveSpeechPath
	return sc
}
