package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/twentyone/internal/game"
)

// Config represents the complete server configuration
type Config struct {
	Server  *ServerSettings  `hcl:"server,block"`
	Rules   *RulesSettings   `hcl:"rules,block"`
	Session *SessionSettings `hcl:"session,block"`
	Handlog *HandlogSettings `hcl:"handlog,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address         string `hcl:"address,optional"`
	Port            int    `hcl:"port,optional"`
	LogLevel        string `hcl:"log_level,optional"`
	ShutdownTimeout string `hcl:"shutdown_timeout,optional"`
}

// RulesSettings overrides the default table rules. Unset fields keep
// their defaults, so a config file only states what it changes.
type RulesSettings struct {
	Decks            int     `hcl:"decks,optional"`
	Penetration      float64 `hcl:"penetration,optional"`
	MinBet           int     `hcl:"min_bet,optional"`
	MaxBet           int     `hcl:"max_bet,optional"`
	StartingBankroll int     `hcl:"starting_bankroll,optional"`
	DealerHitsSoft17 bool    `hcl:"dealer_hits_soft_17,optional"`
	BlackjackPayout  string  `hcl:"blackjack_payout,optional"`
	MaxSplitHands    int     `hcl:"max_split_hands,optional"`
	DoubleAfterSplit *bool   `hcl:"double_after_split,optional"`
	SurrenderAllowed *bool   `hcl:"surrender_allowed,optional"`
	FiveCardCharlie  *bool   `hcl:"five_card_charlie,optional"`
}

// SessionSettings selects and configures the session store
type SessionSettings struct {
	Store         string `hcl:"store,optional"`
	TTL           string `hcl:"ttl,optional"`
	Dir           string `hcl:"dir,optional"`
	AutoDelay     string `hcl:"auto_delay,optional"`
	RedisAddr     string `hcl:"redis_addr,optional"`
	RedisPassword string `hcl:"redis_password,optional"`
	RedisDB       int    `hcl:"redis_db,optional"`
}

// HandlogSettings selects and configures the round log sink
type HandlogSettings struct {
	Sink          string `hcl:"sink,optional"`
	Dir           string `hcl:"dir,optional"`
	Path          string `hcl:"path,optional"`
	FlushInterval string `hcl:"flush_interval,optional"`
	FlushRounds   int    `hcl:"flush_rounds,optional"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerSettings{
			Address:         "localhost",
			Port:            8080,
			LogLevel:        "info",
			ShutdownTimeout: "10s",
		},
		Rules: &RulesSettings{},
		Session: &SessionSettings{
			Store:     "memory",
			TTL:       "24h",
			Dir:       "sessions",
			AutoDelay: "100ms",
			RedisAddr: "localhost:6379",
		},
		Handlog: &HandlogSettings{
			Sink:          "none",
			Dir:           "rounds",
			Path:          "rounds.db",
			FlushInterval: "10s",
			FlushRounds:   10,
		},
	}
}

// LoadConfig loads server configuration from an HCL file
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		config := DefaultConfig()
		applyEnvOverrides(config)
		return config, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing blocks and values
	defaults := DefaultConfig()
	if config.Server == nil {
		config.Server = defaults.Server
	}
	if config.Rules == nil {
		config.Rules = defaults.Rules
	}
	if config.Session == nil {
		config.Session = defaults.Session
	}
	if config.Handlog == nil {
		config.Handlog = defaults.Handlog
	}

	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Server.ShutdownTimeout == "" {
		config.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}

	if config.Session.Store == "" {
		config.Session.Store = defaults.Session.Store
	}
	if config.Session.TTL == "" {
		config.Session.TTL = defaults.Session.TTL
	}
	if config.Session.Dir == "" {
		config.Session.Dir = defaults.Session.Dir
	}
	if config.Session.AutoDelay == "" {
		config.Session.AutoDelay = defaults.Session.AutoDelay
	}
	if config.Session.RedisAddr == "" {
		config.Session.RedisAddr = defaults.Session.RedisAddr
	}

	if config.Handlog.Sink == "" {
		config.Handlog.Sink = defaults.Handlog.Sink
	}
	if config.Handlog.Dir == "" {
		config.Handlog.Dir = defaults.Handlog.Dir
	}
	if config.Handlog.Path == "" {
		config.Handlog.Path = defaults.Handlog.Path
	}
	if config.Handlog.FlushInterval == "" {
		config.Handlog.FlushInterval = defaults.Handlog.FlushInterval
	}
	if config.Handlog.FlushRounds == 0 {
		config.Handlog.FlushRounds = defaults.Handlog.FlushRounds
	}

	applyEnvOverrides(&config)

	return &config, nil
}

// applyEnvOverrides lets deployment environments point at Redis without
// editing the config file. Pairs with godotenv loading in main.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TWENTYONE_REDIS_ADDR"); v != "" {
		config.Session.RedisAddr = v
	}
	if v := os.Getenv("TWENTYONE_REDIS_PASSWORD"); v != "" {
		config.Session.RedisPassword = v
	}
	if v := os.Getenv("TWENTYONE_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			config.Session.RedisDB = db
		}
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}

	switch c.Session.Store {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("invalid session store %q, want memory, file or redis", c.Session.Store)
	}
	if _, err := time.ParseDuration(c.Session.TTL); err != nil {
		return fmt.Errorf("invalid session ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.Session.AutoDelay); err != nil {
		return fmt.Errorf("invalid auto_delay: %w", err)
	}
	if c.Session.Store == "file" && c.Session.Dir == "" {
		return fmt.Errorf("file session store requires dir")
	}
	if c.Session.Store == "redis" && c.Session.RedisAddr == "" {
		return fmt.Errorf("redis session store requires redis_addr")
	}

	switch c.Handlog.Sink {
	case "none", "jsonl", "sqlite":
	default:
		return fmt.Errorf("invalid handlog sink %q, want none, jsonl or sqlite", c.Handlog.Sink)
	}
	if _, err := time.ParseDuration(c.Handlog.FlushInterval); err != nil {
		return fmt.Errorf("invalid flush_interval: %w", err)
	}
	if c.Handlog.FlushRounds < 1 {
		return fmt.Errorf("flush_rounds must be positive, got %d", c.Handlog.FlushRounds)
	}

	rules, err := c.GameRules()
	if err != nil {
		return err
	}
	return rules.Validate()
}

// ListenAddr returns the full listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// ShutdownTimeout returns the parsed graceful shutdown window
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

// SessionTTL returns the parsed session lifetime
func (c *Config) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Session.TTL)
	return d
}

// AutoDelay returns the parsed pacing between auto-played rounds
func (c *Config) AutoDelay() time.Duration {
	d, _ := time.ParseDuration(c.Session.AutoDelay)
	return d
}

// FlushInterval returns the parsed round log flush interval
func (c *Config) FlushInterval() time.Duration {
	d, _ := time.ParseDuration(c.Handlog.FlushInterval)
	return d
}

// GameRules maps the rules block onto the default table rules. Only
// fields the config sets are overridden.
func (c *Config) GameRules() (game.Rules, error) {
	rules := game.DefaultRules()
	r := c.Rules
	if r == nil {
		return rules, nil
	}

	if r.Decks != 0 {
		rules.Decks = r.Decks
	}
	if r.Penetration != 0 {
		rules.Penetration = r.Penetration
	}
	if r.MinBet != 0 {
		rules.MinBet = r.MinBet
	}
	if r.MaxBet != 0 {
		rules.MaxBet = r.MaxBet
	}
	if r.StartingBankroll != 0 {
		rules.StartingBankroll = r.StartingBankroll
	}
	rules.DealerHitsSoft17 = r.DealerHitsSoft17
	if r.BlackjackPayout != "" {
		num, denom, err := parsePayout(r.BlackjackPayout)
		if err != nil {
			return game.Rules{}, err
		}
		rules.BlackjackPayoutNum = num
		rules.BlackjackPayoutDenom = denom
	}
	if r.MaxSplitHands != 0 {
		rules.MaxSplitHands = r.MaxSplitHands
	}
	if r.DoubleAfterSplit != nil {
		rules.DoubleAfterSplit = *r.DoubleAfterSplit
	}
	if r.SurrenderAllowed != nil {
		rules.SurrenderAllowed = *r.SurrenderAllowed
	}
	if r.FiveCardCharlie != nil {
		rules.FiveCardCharlie = *r.FiveCardCharlie
	}
	return rules, nil
}

// parsePayout reads a payout ratio like "3:2"
func parsePayout(s string) (int, int, error) {
	numStr, denomStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid blackjack_payout %q, want num:denom", s)
	}
	num, err := strconv.Atoi(strings.TrimSpace(numStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid blackjack_payout %q: %w", s, err)
	}
	denom, err := strconv.Atoi(strings.TrimSpace(denomStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid blackjack_payout %q: %w", s, err)
	}
	return num, denom, nil
}
