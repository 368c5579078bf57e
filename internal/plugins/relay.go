package plugins

import (
	"context"
	"time"

	"github.com/dayuer/hipbot-go/internal/bot"
	"github.com/dayuer/hipbot-go/internal/chat"
)

// Publisher publishes a JSON payload to a channel. *redis.Client satisfies it.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any) error
}

// RelayEvent is the payload published for every new message.
type RelayEvent struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	MessageID string    `json:"message_id"`
	Author    string    `json:"author"`
	AuthorID  string    `json:"author_id,omitempty"`
	Body      string    `json:"body"`
	Date      time.Time `json:"date"`
}

// Relay publishes every new message to channel.
func Relay(p Publisher, channel string) bot.Reactive {
	return func(ctx context.Context, room chat.Room, msg chat.Message, _ *bot.Bot, _ chat.Client) error {
		ev := RelayEvent{
			RoomID:    room.ID,
			RoomName:  room.Name,
			MessageID: msg.ID,
			Author:    msg.From.String(),
			Body:      msg.Body,
			Date:      msg.Date,
		}
		if msg.From.IsResolved() {
			ev.AuthorID = msg.From.User.ID
		}
		return p.PublishJSON(ctx, channel, ev)
	}
}
