// Package config handles configuration loading, saving, and schema definition.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Config is the top-level hipbot configuration.
type Config struct {
	Chat      ChatConfig      `yaml:"chat"`
	Bot       BotConfig       `yaml:"bot"`
	Plugins   PluginsConfig   `yaml:"plugins"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ChatConfig holds chat service connection settings.
type ChatConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	PageSize int           `yaml:"pageSize,omitempty"`
}

// BotConfig holds the bot identity and the rooms it watches.
type BotConfig struct {
	Username     string        `yaml:"username"`
	Rooms        []string      `yaml:"rooms,omitempty"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// PluginsConfig toggles the built-in plugins.
type PluginsConfig struct {
	Ping          bool           `yaml:"ping"`
	Uptime        bool           `yaml:"uptime"`
	Relay         bool           `yaml:"relay"`
	Announcements []Announcement `yaml:"announcements,omitempty"`
}

// Announcement is a message posted on a cron schedule.
type Announcement struct {
	Cron  string   `yaml:"cron"`
	Text  string   `yaml:"text"`
	Rooms []string `yaml:"rooms,omitempty"` // empty = all watched rooms
}

// RedisConfig holds settings for the relay plugin.
type RedisConfig struct {
	URL      string `yaml:"url,omitempty"`
	Password string `yaml:"password,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// TelemetryConfig holds metrics and tracing settings.
type TelemetryConfig struct {
	MetricsAddr  string `yaml:"metricsAddr,omitempty"`
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Chat: ChatConfig{
			Endpoint: "https://api.hipchat.com",
			Timeout:  30 * time.Second,
			PageSize: 100,
		},
		Bot: BotConfig{
			Username:     "hipbot",
			PollInterval: 10 * time.Second,
		},
		Plugins: PluginsConfig{
			Ping:   true,
			Uptime: true,
		},
		Redis: RedisConfig{
			Channel: "hipbot:messages",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate reports every problem that would stop the bot from running.
func (c Config) Validate() error {
	var errs []error
	if c.Chat.Token == "" {
		errs = append(errs, errors.New("chat.token is required"))
	}
	if c.Bot.Username == "" {
		errs = append(errs, errors.New("bot.username is required"))
	}
	if len(c.Bot.Rooms) == 0 {
		errs = append(errs, errors.New("bot.rooms must list at least one room"))
	}
	if c.Bot.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("bot.pollInterval must be positive, got %s", c.Bot.PollInterval))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Plugins.Relay && c.Redis.URL == "" {
		errs = append(errs, errors.New("plugins.relay requires redis.url"))
	}
	for i, a := range c.Plugins.Announcements {
		if !gronx.IsValid(a.Cron) {
			errs = append(errs, fmt.Errorf("plugins.announcements[%d].cron: invalid cron expression %q", i, a.Cron))
		}
		if a.Text == "" {
			errs = append(errs, fmt.Errorf("plugins.announcements[%d].text is empty", i))
		}
	}
	return errors.Join(errs...)
}
