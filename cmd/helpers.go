package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dayuer/hipbot-go/internal/bot"
	"github.com/dayuer/hipbot-go/internal/chat"
	"github.com/dayuer/hipbot-go/internal/chat/hipchat"
	"github.com/dayuer/hipbot-go/internal/config"
)

// loadConfig layers .env, the YAML file and HIPBOT_* variables, in that order.
func loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// newLogger builds the process logger from cfg.Log and installs it as the
// slog default.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	lvl, ok := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	if !ok {
		logger.Warn("unknown log level, using info", slog.String("value", cfg.Level))
	}
	slog.SetDefault(logger)
	return logger
}

func makeClient(cfg config.ChatConfig) *hipchat.Client {
	var opts []hipchat.Option
	if cfg.Timeout > 0 {
		opts = append(opts, hipchat.WithTimeout(cfg.Timeout))
	}
	if cfg.PageSize > 0 {
		opts = append(opts, hipchat.WithPageSize(cfg.PageSize))
	}
	return hipchat.New(cfg.Endpoint, cfg.Token, opts...)
}

// findRoom looks a room up by id or name.
func findRoom(ctx context.Context, c chat.Client, key string) (chat.Room, error) {
	rooms, err := c.ListRooms(ctx)
	if err != nil {
		return chat.Room{}, fmt.Errorf("listing rooms: %w", err)
	}
	for _, r := range rooms {
		if r.ID == key || r.Name == key {
			return r, nil
		}
	}
	return chat.Room{}, fmt.Errorf("%w: %q", bot.ErrRoomNotFound, key)
}
