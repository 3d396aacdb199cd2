package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "twentyone.hcl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Session.Store != "memory" {
		t.Errorf("Expected default store memory, got %q", cfg.Session.Store)
	}
	if cfg.Handlog.Sink != "none" {
		t.Errorf("Expected default sink none, got %q", cfg.Handlog.Sink)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfigFile(t, `
server {
  address          = "0.0.0.0"
  port             = 9090
  log_level        = "debug"
  shutdown_timeout = "5s"
}

rules {
  decks              = 8
  min_bet            = 5
  max_bet            = 1000
  starting_bankroll  = 5000
  dealer_hits_soft_17 = true
  blackjack_payout   = "6:5"
  double_after_split = false
}

session {
  store      = "file"
  ttl        = "1h"
  dir        = "/tmp/twentyone-sessions"
  auto_delay = "50ms"
}

handlog {
  sink           = "sqlite"
  path           = "/tmp/rounds.db"
  flush_interval = "30s"
  flush_rounds   = 25
}
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	if cfg.ListenAddr() != "0.0.0.0:9090" {
		t.Errorf("Expected listen addr 0.0.0.0:9090, got %q", cfg.ListenAddr())
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %q", cfg.Server.LogLevel)
	}
	if cfg.ShutdownTimeout() != 5*time.Second {
		t.Errorf("Expected shutdown timeout 5s, got %v", cfg.ShutdownTimeout())
	}
	if cfg.SessionTTL() != time.Hour {
		t.Errorf("Expected session ttl 1h, got %v", cfg.SessionTTL())
	}
	if cfg.AutoDelay() != 50*time.Millisecond {
		t.Errorf("Expected auto delay 50ms, got %v", cfg.AutoDelay())
	}
	if cfg.Session.Store != "file" {
		t.Errorf("Expected store file, got %q", cfg.Session.Store)
	}
	if cfg.Handlog.Sink != "sqlite" {
		t.Errorf("Expected sink sqlite, got %q", cfg.Handlog.Sink)
	}
	if cfg.Handlog.FlushRounds != 25 {
		t.Errorf("Expected flush rounds 25, got %d", cfg.Handlog.FlushRounds)
	}
	if cfg.FlushInterval() != 30*time.Second {
		t.Errorf("Expected flush interval 30s, got %v", cfg.FlushInterval())
	}

	rules, err := cfg.GameRules()
	if err != nil {
		t.Fatalf("GameRules error: %v", err)
	}
	if rules.Decks != 8 {
		t.Errorf("Expected 8 decks, got %d", rules.Decks)
	}
	if rules.MinBet != 5 || rules.MaxBet != 1000 {
		t.Errorf("Expected bet limits [5, 1000], got [%d, %d]", rules.MinBet, rules.MaxBet)
	}
	if rules.StartingBankroll != 5000 {
		t.Errorf("Expected starting bankroll 5000, got %d", rules.StartingBankroll)
	}
	if !rules.DealerHitsSoft17 {
		t.Error("Expected dealer to hit soft 17")
	}
	if rules.BlackjackPayoutNum != 6 || rules.BlackjackPayoutDenom != 5 {
		t.Errorf("Expected 6:5 payout, got %d:%d", rules.BlackjackPayoutNum, rules.BlackjackPayoutDenom)
	}
	if rules.DoubleAfterSplit {
		t.Error("Expected double after split disabled")
	}

	// Fields the file does not set keep their defaults
	if !rules.SurrenderAllowed {
		t.Error("Expected surrender to default on")
	}
	if rules.MaxSplitHands != 4 {
		t.Errorf("Expected default max split hands 4, got %d", rules.MaxSplitHands)
	}
}

func TestLoadConfigPartialBlocks(t *testing.T) {
	path := writeConfigFile(t, `
server {
  port = 3000
}
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Server.Address != "localhost" {
		t.Errorf("Expected default address, got %q", cfg.Server.Address)
	}
	if cfg.Session == nil || cfg.Session.Store != "memory" {
		t.Error("Expected default session block")
	}
	if cfg.Handlog == nil || cfg.Handlog.Sink != "none" {
		t.Error("Expected default handlog block")
	}
}

func TestLoadConfigParseError(t *testing.T) {
	path := writeConfigFile(t, `server { port = `)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfigValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 700000 }},
		{"bad shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = "soon" }},
		{"bad store", func(c *Config) { c.Session.Store = "postgres" }},
		{"bad ttl", func(c *Config) { c.Session.TTL = "forever" }},
		{"bad sink", func(c *Config) { c.Handlog.Sink = "kafka" }},
		{"bad flush rounds", func(c *Config) { c.Handlog.FlushRounds = 0 }},
		{"bad payout", func(c *Config) { c.Rules.BlackjackPayout = "three-two" }},
		{"bad decks", func(c *Config) { c.Rules.Decks = 20 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigRedisEnvOverride(t *testing.T) {
	t.Setenv("TWENTYONE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("TWENTYONE_REDIS_PASSWORD", "hunter2")
	t.Setenv("TWENTYONE_REDIS_DB", "3")

	path := writeConfigFile(t, `
session {
  store      = "redis"
  redis_addr = "localhost:6379"
}
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Session.RedisAddr != "redis.internal:6380" {
		t.Errorf("Expected env override addr, got %q", cfg.Session.RedisAddr)
	}
	if cfg.Session.RedisPassword != "hunter2" {
		t.Errorf("Expected env override password, got %q", cfg.Session.RedisPassword)
	}
	if cfg.Session.RedisDB != 3 {
		t.Errorf("Expected env override db 3, got %d", cfg.Session.RedisDB)
	}
}
