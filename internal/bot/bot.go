// Package bot implements the room polling loop: it resolves the watched rooms
// and its own identity, pulls new messages each cycle and hands them to the
// registered plugins.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dayuer/hipbot-go/internal/chat"
	"github.com/dayuer/hipbot-go/internal/telemetry"
	"github.com/dayuer/hipbot-go/internal/watermark"
)

// DefaultInterval is the pause between poll cycles.
const DefaultInterval = 10 * time.Second

var (
	// ErrSelfNotFound means the bot's username is not among the service's users.
	ErrSelfNotFound = errors.New("bot user not found")
	// ErrRoomNotFound means a watched room name does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrAlreadyRunning is returned by Run on a bot that is already running.
	ErrAlreadyRunning = errors.New("bot already running")
)

// State is the loop state.
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Bot owns all run state: resolved rooms and identity, watermarks and plugins.
type Bot struct {
	Registry

	client    chat.Client
	username  string
	roomNames []string
	interval  time.Duration
	log       *slog.Logger
	metrics   *telemetry.Metrics

	marks *watermark.Tracker
	rooms []chat.Room
	self  chat.User

	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a Bot.
type Option func(*Bot)

// WithInterval sets the pause between poll cycles.
func WithInterval(d time.Duration) Option {
	return func(b *Bot) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Bot) {
		if m != nil {
			b.metrics = m
		}
	}
}

// New creates a bot that logs in as username and watches the named rooms.
// Rooms may be given by name or id.
func New(client chat.Client, username string, rooms []string, opts ...Option) *Bot {
	b := &Bot{
		client:    client,
		username:  username,
		roomNames: append([]string(nil), rooms...),
		interval:  DefaultInterval,
		log:       slog.Default(),
		marks:     watermark.New(),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = telemetry.NewMetrics(prometheus.NewRegistry())
	}
	return b
}

// Resolve looks up the watched rooms and the bot's own user. Any failure is
// fatal for the run.
func (b *Bot) Resolve(ctx context.Context) error {
	all, err := b.client.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("resolve rooms: %w", err)
	}
	byKey := make(map[string]chat.Room, len(all)*2)
	for _, r := range all {
		byKey[r.ID] = r
		byKey[r.Name] = r
	}
	rooms := make([]chat.Room, 0, len(b.roomNames))
	for _, name := range b.roomNames {
		r, ok := byKey[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrRoomNotFound, name)
		}
		rooms = append(rooms, r)
	}

	users, err := b.client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("resolve self: %w", err)
	}
	self, ok := findUser(users, b.username)
	if !ok {
		return fmt.Errorf("%w: %q", ErrSelfNotFound, b.username)
	}

	b.rooms = rooms
	b.self = self
	return nil
}

// findUser matches by name first, then mention name, then id.
func findUser(users []chat.User, key string) (chat.User, bool) {
	for _, u := range users {
		if u.Name == key {
			return u, true
		}
	}
	for _, u := range users {
		if u.MentionName != "" && u.MentionName == key {
			return u, true
		}
	}
	for _, u := range users {
		if u.ID == key {
			return u, true
		}
	}
	return chat.User{}, false
}

// Run resolves rooms and identity, then polls until ctx is cancelled or Stop
// is called. It returns nil after Stop and ctx.Err() after cancellation.
// Stop and cancellation are only observed between cycles.
func (b *Bot) Run(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(Stopped), int32(Running)) {
		return ErrAlreadyRunning
	}
	defer b.state.Store(int32(Stopped))

	if err := b.Resolve(ctx); err != nil {
		return err
	}
	b.log.Info("bot started",
		"user", b.self.Name, "rooms", len(b.rooms), "interval", b.interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stopCh:
			return nil
		default:
		}

		b.RunCycle(ctx)

		timer := time.NewTimer(b.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-b.stopCh:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Stop ends the loop at its next checkpoint. A stopped bot cannot be rerun.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.log.Info("bot stopping")
	})
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	Messages     int
	PollErrors   []error
	PluginErrors []error
}

type roomBatch struct {
	room chat.Room
	msgs []chat.Message
}

// RunCycle polls every room once, dispatches new messages to the reactive
// plugins, then runs every non-reactive plugin once. A room whose fetch fails
// is skipped for this cycle with its watermark untouched.
func (b *Bot) RunCycle(ctx context.Context) CycleReport {
	ctx = telemetry.WithCorrelation(ctx, "")
	ctx, span := telemetry.StartSpan(ctx, "poll.cycle", attribute.Int("rooms", len(b.rooms)))
	defer span.End()
	log := telemetry.Logger(ctx, b.log)

	var report CycleReport
	telemetry.TimeFunc(b.metrics.CycleDuration, func() {
		var batches []roomBatch
		for _, room := range b.rooms {
			msgs, err := b.pollRoom(ctx, room)
			if err != nil {
				if ctx.Err() != nil {
					log.Debug("poll room interrupted", "room", room.Name, "err", err)
					continue
				}
				log.Error("poll room failed", "room", room.Name, "err", err)
				b.metrics.PollErrors.WithLabelValues(room.Name).Inc()
				report.PollErrors = append(report.PollErrors, fmt.Errorf("room %s: %w", room.Name, err))
				continue
			}
			if len(msgs) > 0 {
				batches = append(batches, roomBatch{room: room, msgs: msgs})
			}
		}

		reactives := b.Reactives()
		for _, batch := range batches {
			for _, msg := range batch.msgs {
				log.Info("handling message", "room", batch.room.Name, "message_id", msg.ID)
				report.Messages++
				b.metrics.Messages.Inc()
				for _, fn := range reactives {
					if err := b.callReactive(ctx, fn, batch.room, msg); err != nil {
						log.Error("reactive plugin errored while handling message",
							"plugin", err.Plugin, "room", batch.room.Name, "message_id", msg.ID, "err", err.Err)
						report.PluginErrors = append(report.PluginErrors, err)
					}
				}
			}
		}

		for _, fn := range b.NonReactives() {
			if err := b.callNonReactive(ctx, fn); err != nil {
				log.Error("non-reactive plugin errored while running", "plugin", err.Plugin, "err", err.Err)
				report.PluginErrors = append(report.PluginErrors, err)
			}
		}
	})

	b.metrics.PollCycles.Inc()
	b.metrics.WatermarkedRoom.Set(float64(b.marks.Len()))
	if len(report.PollErrors) > 0 {
		telemetry.RecordError(span, errors.Join(report.PollErrors...))
	}
	span.SetAttributes(attribute.Int("messages", report.Messages))
	return report
}

func (b *Bot) callReactive(ctx context.Context, fn Reactive, room chat.Room, msg chat.Message) *PluginError {
	err := invoke(func() error { return fn(ctx, room, msg, b, b.client) })
	if err == nil {
		return nil
	}
	b.metrics.PluginErrors.WithLabelValues("reactive").Inc()
	return &PluginError{Plugin: PluginName(fn), Kind: "reactive", RoomID: room.ID, MessageID: msg.ID, Err: err}
}

func (b *Bot) callNonReactive(ctx context.Context, fn NonReactive) *PluginError {
	err := invoke(func() error { return fn(ctx, b, b.client) })
	if err == nil {
		return nil
	}
	b.metrics.PluginErrors.WithLabelValues("non_reactive").Inc()
	return &PluginError{Plugin: PluginName(fn), Kind: "non-reactive", Err: err}
}

// State returns the loop state.
func (b *Bot) State() State { return State(b.state.Load()) }

// Interval returns the pause between cycles.
func (b *Bot) Interval() time.Duration { return b.interval }

// Self returns the bot's resolved user. It is zero before Resolve.
func (b *Bot) Self() chat.User { return b.self }

// Rooms returns the resolved watched rooms in registration order.
func (b *Bot) Rooms() []chat.Room { return append([]chat.Room(nil), b.rooms...) }

// Client returns the chat service client.
func (b *Bot) Client() chat.Client { return b.client }

// Logger returns the bot's logger.
func (b *Bot) Logger() *slog.Logger { return b.log }

// Watermark returns the last message seen in a room.
func (b *Bot) Watermark(roomID string) (chat.Message, bool) { return b.marks.Get(roomID) }

// Say posts text to room.
func (b *Bot) Say(ctx context.Context, room chat.Room, text string) error {
	return b.client.SendMessage(ctx, room.ID, text)
}
