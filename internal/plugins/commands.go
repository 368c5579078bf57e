// Package plugins contains the built-in plugins shipped with hipbot.
package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dayuer/hipbot-go/internal/bot"
	"github.com/dayuer/hipbot-go/internal/chat"
)

// Command replies with reply(msg) when a message body equals trigger,
// ignoring surrounding whitespace and case.
func Command(trigger string, reply func(chat.Message) string) bot.Reactive {
	return func(ctx context.Context, room chat.Room, msg chat.Message, b *bot.Bot, _ chat.Client) error {
		if !strings.EqualFold(strings.TrimSpace(msg.Body), trigger) {
			return nil
		}
		return b.Say(ctx, room, reply(msg))
	}
}

// Ping answers "!ping" with "pong".
func Ping() bot.Reactive {
	return Command("!ping", func(chat.Message) string { return "pong" })
}

// Uptime answers "!uptime" with how long ago the bot started.
func Uptime(started time.Time) bot.Reactive {
	return Command("!uptime", func(chat.Message) string {
		return fmt.Sprintf("up since %s (%s)", started.Format(time.RFC3339), humanize.Time(started))
	})
}
