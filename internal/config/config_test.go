package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"WAVEFORGE_PORT", "WAVEFORGE_SAMPLE_RATE", "WAVEFORGE_LOOKAHEAD",
		"WAVEFORGE_SAFETY_MARGIN", "WAVEFORGE_HARD_CAP", "WAVEFORGE_MAX_WIDTH",
		"WAVEFORGE_PROGRAM", "WAVEFORGE_PRESET", "WAVEFORGE_HEADLESS",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.SampleRate)
	}
	if cfg.Lookahead != 1.0 {
		t.Errorf("Lookahead = %v, want 1.0", cfg.Lookahead)
	}
	if cfg.SafetyMargin != 0.1 {
		t.Errorf("SafetyMargin = %v, want 0.1", cfg.SafetyMargin)
	}
	if cfg.HardCap != 8192 {
		t.Errorf("HardCap = %d, want 8192", cfg.HardCap)
	}
	if cfg.MaxWidth != 0 {
		t.Errorf("MaxWidth = %d, want 0 (evaluator default)", cfg.MaxWidth)
	}
	if cfg.TickInterval != 16*time.Millisecond {
		t.Errorf("TickInterval = %v, want 16ms", cfg.TickInterval)
	}
	if cfg.SwapTimeout != 5*time.Second {
		t.Errorf("SwapTimeout = %v, want 5s", cfg.SwapTimeout)
	}
	if cfg.Preset != "sine" {
		t.Errorf("Preset = %q, want sine", cfg.Preset)
	}
	if cfg.Headless {
		t.Error("Headless defaulted to true")
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "waveforge.yaml")
	data := []byte(`
port: 3000
sample_rate: 44100
lookahead: 0.5
hard_cap: 4096
preset: fmbell
headless: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.SampleRate)
	}
	if cfg.Lookahead != 0.5 {
		t.Errorf("Lookahead = %v, want 0.5", cfg.Lookahead)
	}
	if cfg.HardCap != 4096 {
		t.Errorf("HardCap = %d, want 4096", cfg.HardCap)
	}
	if cfg.Preset != "fmbell" {
		t.Errorf("Preset = %q, want fmbell", cfg.Preset)
	}
	if !cfg.Headless {
		t.Error("Headless not read from file")
	}
	// Untouched fields keep their defaults.
	if cfg.SafetyMargin != 0.1 {
		t.Errorf("SafetyMargin = %v, want default 0.1", cfg.SafetyMargin)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "waveforge.yaml")
	if err := os.WriteFile(path, []byte("port: 3000\npreset: chord\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WAVEFORGE_PORT", "4000")
	t.Setenv("WAVEFORGE_LOOKAHEAD", "2.5")
	t.Setenv("WAVEFORGE_HEADLESS", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("Port = %d, want env override 4000", cfg.Port)
	}
	if cfg.Preset != "chord" {
		t.Errorf("Preset = %q, want file value chord", cfg.Preset)
	}
	if cfg.Lookahead != 2.5 {
		t.Errorf("Lookahead = %v, want env override 2.5", cfg.Lookahead)
	}
	if !cfg.Headless {
		t.Error("Headless env override ignored")
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAVEFORGE_PORT", "not-a-number")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Invalid int env should fall back to default: got %d, want 8080", cfg.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}

func TestLoadRejectsBadRate(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAVEFORGE_SAMPLE_RATE", "-1")
	if _, err := Load(""); err == nil {
		t.Error("Load accepted a negative sample rate")
	}
}
