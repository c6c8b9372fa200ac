package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration. Values come from built-in
// defaults, then an optional YAML file, then environment variables, each
// layer overriding the previous one.
type Config struct {
	// Server
	Port int `yaml:"port"`

	// Engine timing
	SampleRate   int     `yaml:"sample_rate"`
	Lookahead    float64 `yaml:"lookahead"`     // seconds of scheduled audio to keep ahead
	SafetyMargin float64 `yaml:"safety_margin"` // seconds
	HardCap      int     `yaml:"hard_cap"`      // max samples per generation request
	MaxWidth     int     `yaml:"max_width"`     // evaluator batch ceiling, 0 = evaluator default

	TickInterval time.Duration `yaml:"tick_interval"`
	SwapTimeout  time.Duration `yaml:"swap_timeout"`

	// Startup program
	ProgramPath string `yaml:"program_path"` // file with initial program source
	Preset      string `yaml:"preset"`       // built-in preset when no file given

	// Headless runs against the fake device instead of the sound card.
	Headless bool `yaml:"headless"`
}

func defaults() Config {
	return Config{
		Port:         8080,
		SampleRate:   48000,
		Lookahead:    1.0,
		SafetyMargin: 0.1,
		HardCap:      8192,
		TickInterval: 16 * time.Millisecond,
		SwapTimeout:  5 * time.Second,
		Preset:       "sine",
	}
}

// Load builds the configuration. path names a YAML file and may be empty,
// in which case only defaults and environment variables apply.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = envInt("WAVEFORGE_PORT", cfg.Port)
	cfg.SampleRate = envInt("WAVEFORGE_SAMPLE_RATE", cfg.SampleRate)
	cfg.Lookahead = envFloat("WAVEFORGE_LOOKAHEAD", cfg.Lookahead)
	cfg.SafetyMargin = envFloat("WAVEFORGE_SAFETY_MARGIN", cfg.SafetyMargin)
	cfg.HardCap = envInt("WAVEFORGE_HARD_CAP", cfg.HardCap)
	cfg.MaxWidth = envInt("WAVEFORGE_MAX_WIDTH", cfg.MaxWidth)
	cfg.ProgramPath = envStr("WAVEFORGE_PROGRAM", cfg.ProgramPath)
	cfg.Preset = envStr("WAVEFORGE_PRESET", cfg.Preset)
	cfg.Headless = envBool("WAVEFORGE_HEADLESS", cfg.Headless)

	if cfg.SampleRate < 1 {
		return Config{}, fmt.Errorf("sample rate %d out of range", cfg.SampleRate)
	}
	if cfg.HardCap < 1 {
		return Config{}, fmt.Errorf("hard cap %d out of range", cfg.HardCap)
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
