package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/dayuer/hipbot-go/internal/bot"
	"github.com/dayuer/hipbot-go/internal/chat"
)

// Schedule tracks the next tick of a cron expression.
type Schedule struct {
	expr string
	now  func() time.Time
	next time.Time
}

// NewSchedule validates expr and computes its first tick after now.
func NewSchedule(expr string, now func() time.Time) (*Schedule, error) {
	if !gronx.IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	if now == nil {
		now = time.Now
	}
	s := &Schedule{expr: expr, now: now}
	if err := s.advance(now()); err != nil {
		return nil, err
	}
	return s, nil
}

// Due reports whether a tick has passed since the last call that returned
// true. Ticks missed between polls collapse into one.
func (s *Schedule) Due() (bool, error) {
	now := s.now()
	if now.Before(s.next) {
		return false, nil
	}
	return true, s.advance(now)
}

// Next returns the upcoming tick.
func (s *Schedule) Next() time.Time { return s.next }

func (s *Schedule) advance(from time.Time) error {
	next, err := gronx.NextTickAfter(s.expr, from, false)
	if err != nil {
		return fmt.Errorf("next tick for %q: %w", s.expr, err)
	}
	s.next = next
	return nil
}

// Scheduled wraps fn so it only runs on the poll cycle following each tick
// of the cron expression.
func Scheduled(s *Schedule, fn bot.NonReactive) bot.NonReactive {
	return func(ctx context.Context, b *bot.Bot, c chat.Client) error {
		due, err := s.Due()
		if err != nil {
			return fmt.Errorf("schedule %q: %w", s.expr, err)
		}
		if !due {
			return nil
		}
		if err := fn(ctx, b, c); err != nil {
			return fmt.Errorf("schedule %q: %w", s.expr, err)
		}
		return nil
	}
}

// Announce posts text to the named rooms. Rooms the bot does not watch are
// skipped; an empty list means every watched room.
func Announce(text string, rooms ...string) bot.NonReactive {
	want := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		want[r] = true
	}
	return func(ctx context.Context, b *bot.Bot, _ chat.Client) error {
		for _, room := range b.Rooms() {
			if len(want) > 0 && !want[room.Name] && !want[room.ID] {
				continue
			}
			if err := b.Say(ctx, room, text); err != nil {
				return fmt.Errorf("announce in %s: %w", room.Name, err)
			}
		}
		return nil
	}
}
