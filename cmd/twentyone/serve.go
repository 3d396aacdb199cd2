package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/twentyone/internal/handlog"
	"github.com/lox/twentyone/internal/server"
	"github.com/lox/twentyone/internal/session"
)

// ServeCmd runs the API server
type ServeCmd struct {
	Config   string `short:"c" default:"twentyone.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Listen address (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply command line overrides
	if c.Addr != "" {
		host, port, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return fmt.Errorf("parsing addr %q: %w", c.Addr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("parsing addr %q: %w", c.Addr, err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = portNum
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	rules, err := cfg.GameRules()
	if err != nil {
		return fmt.Errorf("building rules: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := quartz.NewReal()

	store, err := buildStore(ctx, cfg, clock)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close session store", "error", err)
		}
	}()

	recorder, err := buildRecorder(cfg, logger, clock)
	if err != nil {
		return fmt.Errorf("opening round log: %w", err)
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error("Failed to close round log", "error", err)
		}
	}()

	sessions := session.NewManager(logger, session.ManagerConfig{
		Rules:     rules,
		Store:     store,
		Recorder:  recorder,
		TTL:       cfg.SessionTTL(),
		AutoDelay: cfg.AutoDelay(),
		Clock:     clock,
	})
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Error("Failed to close session manager", "error", err)
		}
	}()

	logger.Info("Starting twentyone server",
		"addr", cfg.ListenAddr(),
		"store", cfg.Session.Store,
		"sink", cfg.Handlog.Sink,
		"decks", rules.Decks,
		"minBet", rules.MinBet,
		"maxBet", rules.MaxBet)

	srv := server.NewServer(logger, cfg, sessions)
	return srv.Run(ctx)
}

func buildStore(ctx context.Context, cfg *server.Config, clock quartz.Clock) (session.Store, error) {
	switch cfg.Session.Store {
	case "memory":
		return session.NewMemoryStore(clock), nil
	case "file":
		if err := os.MkdirAll(cfg.Session.Dir, 0o755); err != nil {
			return nil, err
		}
		return session.NewFileStore(cfg.Session.Dir, clock)
	case "redis":
		return session.NewRedisStore(ctx, session.RedisOptions{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

func buildRecorder(cfg *server.Config, logger *log.Logger, clock quartz.Clock) (handlog.Recorder, error) {
	switch cfg.Handlog.Sink {
	case "none":
		return handlog.NopRecorder{}, nil
	case "jsonl":
		return handlog.NewManager(logger.WithPrefix("handlog"), handlog.ManagerConfig{
			BaseDir:       cfg.Handlog.Dir,
			FlushInterval: cfg.FlushInterval(),
			FlushRounds:   cfg.Handlog.FlushRounds,
			Clock:         clock,
		}), nil
	case "sqlite":
		return handlog.NewSQLiteRecorder(logger.WithPrefix("handlog"), cfg.Handlog.Path, clock)
	default:
		return nil, fmt.Errorf("unknown round log sink %q", cfg.Handlog.Sink)
	}
}
