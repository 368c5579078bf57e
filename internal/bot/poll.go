package bot

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dayuer/hipbot-go/internal/chat"
	"github.com/dayuer/hipbot-go/internal/telemetry"
)

// Filter reduces an oldest-first batch to the messages that need a reaction.
// It drops the watermark message itself and anything authored by self.
// last is the final message of the batch, self-authored or not, and is the
// next watermark; for an empty batch it is mark unchanged.
func Filter(batch []chat.Message, mark chat.Message, self chat.User) (fresh []chat.Message, last chat.Message) {
	last = mark
	for _, msg := range batch {
		if msg.ID == mark.ID {
			continue
		}
		if !msg.From.IsSelf(self) {
			fresh = append(fresh, msg)
		}
		last = msg
	}
	return fresh, last
}

// pollRoom returns the room's new messages and advances its watermark.
// A room without a watermark is bootstrapped from its history instead: the
// newest message becomes the watermark and nothing is returned, so existing
// history never triggers reactive plugins.
func (b *Bot) pollRoom(ctx context.Context, room chat.Room) ([]chat.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "poll.room", attribute.String("room", room.Name))
	defer span.End()

	mark, ok := b.marks.Get(room.ID)
	if !ok {
		history, err := b.client.RoomHistory(ctx, room.ID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if len(history) > 0 {
			newest := history[len(history)-1]
			b.marks.Set(room.ID, newest)
			telemetry.Logger(ctx, b.log).Debug("watermark seeded",
				"room", room.Name, "message_id", newest.ID, "history", len(history))
		}
		return nil, nil
	}

	batch, err := b.client.RoomMessagesSince(ctx, room.ID, mark.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	fresh, last := Filter(batch, mark, b.self)
	b.marks.Set(room.ID, last)
	span.SetAttributes(attribute.Int("messages", len(fresh)))
	return fresh, nil
}
