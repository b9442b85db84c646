package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/quantbench/internal/core"
)

func TestLoad_FromFile(t *testing.T) {
	content := []byte(`
server:
  host: "127.0.0.1"
  port: 9090
  run_timeout: 30s

storage:
  data_dir: "/tmp/quantbench/bars"
  archive:
    type: localfs
    path: "/tmp/quantbench/archive"

engine:
  fee_rate: 0.002

analytics:
  monte_carlo:
    runs: 10
`)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.RunTimeout != 30*time.Second {
		t.Errorf("expected run timeout 30s, got %s", cfg.Server.RunTimeout)
	}
	if cfg.Storage.Archive.Type != "localfs" {
		t.Errorf("expected localfs, got %s", cfg.Storage.Archive.Type)
	}
	if cfg.Engine.FeeRate != 0.002 {
		t.Errorf("expected fee rate 0.002, got %f", cfg.Engine.FeeRate)
	}
	// untouched keys keep their defaults
	if cfg.Engine.InitialCapital != 10000 {
		t.Errorf("expected default capital 10000, got %f", cfg.Engine.InitialCapital)
	}
	if cfg.Analytics.MonteCarlo.Runs != 10 || cfg.Analytics.MonteCarlo.High != 1.15 {
		t.Errorf("unexpected monte carlo config %+v", cfg.Analytics.MonteCarlo)
	}
	if cfg.Analytics.RegimeWindow != 24 {
		t.Errorf("expected default regime window 24, got %d", cfg.Analytics.RegimeWindow)
	}
}

func TestLoad_EnvOverridesAndExpansion(t *testing.T) {
	t.Setenv("QUANTBENCH_ENGINE_INITIAL_CAPITAL", "2500")
	t.Setenv("QUANTBENCH_SERVER_PORT", "7070")
	t.Setenv("ARCHIVE_BUCKET", "runs-bucket")

	content := []byte(`
storage:
  archive:
    type: s3
    s3:
      bucket: "${ARCHIVE_BUCKET}"
`)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Engine.InitialCapital != 2500 {
		t.Errorf("expected env capital 2500, got %f", cfg.Engine.InitialCapital)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Archive.S3.Bucket != "runs-bucket" {
		t.Errorf("expected expanded bucket, got %q", cfg.Storage.Archive.S3.Bucket)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Engine.PositionSize != 0.98 {
		t.Errorf("expected default position size 0.98, got %f", cfg.Engine.PositionSize)
	}
	if len(cfg.Stability.Factors) != 4 {
		t.Errorf("expected 4 stability factors, got %v", cfg.Stability.Factors)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("unexpected addr %s", cfg.Addr())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr *core.Error
	}{
		{"valid config", func(*Config) {}, nil},
		{"invalid port - zero", func(c *Config) { c.Server.Port = 0 }, core.ErrConfigInvalid},
		{"invalid port - too high", func(c *Config) { c.Server.Port = 70000 }, core.ErrConfigInvalid},
		{"zero timeout", func(c *Config) { c.Server.RunTimeout = 0 }, core.ErrConfigInvalid},
		{"negative capital", func(c *Config) { c.Engine.InitialCapital = -1 }, core.ErrConfigInvalid},
		{"fee rate of one", func(c *Config) { c.Engine.FeeRate = 1 }, core.ErrConfigInvalid},
		{"oversized position", func(c *Config) { c.Engine.PositionSize = 1.5 }, core.ErrConfigInvalid},
		{"tiny regime window", func(c *Config) { c.Analytics.RegimeWindow = 1 }, core.ErrConfigInvalid},
		{"inverted monte carlo", func(c *Config) { c.Analytics.MonteCarlo.Low = 2 }, core.ErrConfigInvalid},
		{"bad significance", func(c *Config) { c.Analytics.Thresholds.Significance = 0 }, core.ErrConfigInvalid},
		{"negative factor", func(c *Config) { c.Stability.Factors = []float64{-1} }, core.ErrConfigInvalid},
		{"s3 without bucket", func(c *Config) { c.Storage.Archive.Type = "s3" }, core.ErrConfigMissing},
		{"unknown archive", func(c *Config) { c.Storage.Archive.Type = "ftp" }, core.ErrConfigInvalid},
		{"archive disabled", func(c *Config) { c.Storage.Archive.Type = "none" }, nil},
		{"no data dir", func(c *Config) { c.Storage.DataDir = "" }, core.ErrConfigMissing},
		{"webhook url", func(c *Config) { c.Notify.WebhookURL = "https://hooks.example.com/runs" }, nil},
		{"webhook not http", func(c *Config) { c.Notify.WebhookURL = "ftp://hooks" }, core.ErrConfigInvalid},
		{"email complete", func(c *Config) {
			c.Notify.Email = EmailConfig{Host: "smtp.example.com", Port: 587, From: "bench@example.com", To: []string{"desk@example.com"}}
		}, nil},
		{"email without recipients", func(c *Config) {
			c.Notify.Email = EmailConfig{Host: "smtp.example.com", Port: 587, From: "bench@example.com"}
		}, core.ErrConfigMissing},
		{"email bad port", func(c *Config) {
			c.Notify.Email = EmailConfig{Host: "smtp.example.com", Port: 0, From: "bench@example.com", To: []string{"desk@example.com"}}
		}, core.ErrConfigInvalid},
		{"telegram complete", func(c *Config) { c.Notify.Telegram.BotToken, c.Notify.Telegram.ChatID = "123:abc", "-100200" }, nil},
		{"telegram without chat", func(c *Config) { c.Notify.Telegram.BotToken = "123:abc" }, core.ErrConfigMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
