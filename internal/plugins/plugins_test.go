package plugins

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/hipbot-go/internal/bot"
	"github.com/dayuer/hipbot-go/internal/chat"
)

var (
	ops = chat.Room{ID: "10", Name: "ops"}
	dev = chat.Room{ID: "11", Name: "dev"}
)

type stubClient struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *stubClient) ListUsers(context.Context) ([]chat.User, error) {
	return []chat.User{{ID: "7", Name: "hipbot"}}, nil
}

func (s *stubClient) ListRooms(context.Context) ([]chat.Room, error) {
	return []chat.Room{ops, dev}, nil
}

func (s *stubClient) RoomHistory(context.Context, string) ([]chat.Message, error) {
	return nil, nil
}

func (s *stubClient) RoomMessagesSince(context.Context, string, string) ([]chat.Message, error) {
	return nil, nil
}

func (s *stubClient) SendMessage(_ context.Context, roomID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, roomID+":"+text)
	return nil
}

func newBot(t *testing.T, c *stubClient) *bot.Bot {
	t.Helper()
	b := bot.New(c, "hipbot", []string{"ops", "dev"}, bot.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, b.Resolve(context.Background()))
	return b
}

func TestPing(t *testing.T) {
	c := &stubClient{}
	b := newBot(t, c)
	p := Ping()

	require.NoError(t, p(context.Background(), ops, chat.Message{ID: "1", Body: "  !PING "}, b, c))
	require.NoError(t, p(context.Background(), ops, chat.Message{ID: "2", Body: "ping me later"}, b, c))
	assert.Equal(t, []string{"10:pong"}, c.sent)
}

func TestUptime(t *testing.T) {
	c := &stubClient{}
	b := newBot(t, c)
	started := time.Now().Add(-3 * time.Hour)

	require.NoError(t, Uptime(started)(context.Background(), dev, chat.Message{Body: "!uptime"}, b, c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "11:up since ")
	assert.Contains(t, c.sent[0], "3 hours ago")
}

func TestCommand_SendErrorPropagates(t *testing.T) {
	c := &stubClient{err: errors.New("403")}
	b := newBot(t, c)
	err := Ping()(context.Background(), ops, chat.Message{Body: "!ping"}, b, c)
	assert.EqualError(t, err, "403")
}

type recordingPublisher struct {
	channel string
	events  []RelayEvent
	err     error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, channel string, v any) error {
	p.channel = channel
	p.events = append(p.events, v.(RelayEvent))
	return p.err
}

func TestRelay(t *testing.T) {
	pub := &recordingPublisher{}
	c := &stubClient{}
	b := newBot(t, c)
	when := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	relay := Relay(pub, "hipbot:test")

	require.NoError(t, relay(context.Background(), ops, chat.Message{
		ID: "m1", From: chat.ResolvedAuthor(chat.User{ID: "1", Name: "Alice"}), Body: "hello", Date: when,
	}, b, c))
	require.NoError(t, relay(context.Background(), ops, chat.Message{
		ID: "m2", From: chat.RawAuthor("GitHub"), Body: "push",
	}, b, c))

	assert.Equal(t, "hipbot:test", pub.channel)
	require.Len(t, pub.events, 2)
	assert.Equal(t, RelayEvent{RoomID: "10", RoomName: "ops", MessageID: "m1", Author: "Alice", AuthorID: "1", Body: "hello", Date: when}, pub.events[0])
	assert.Equal(t, "GitHub", pub.events[1].Author)
	assert.Empty(t, pub.events[1].AuthorID)
}

func TestRelay_PublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	c := &stubClient{}
	err := Relay(pub, "x")(context.Background(), ops, chat.Message{ID: "m"}, newBot(t, c), c)
	assert.EqualError(t, err, "redis down")
}

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestSchedule_Due(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 2, 0, 0, time.UTC)}
	s, err := NewSchedule("*/5 * * * *", clock.now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC), s.Next())

	clock.t = clock.t.Add(2 * time.Minute) // 12:04
	due, err := s.Due()
	require.NoError(t, err)
	assert.False(t, due)

	clock.t = time.Date(2024, 5, 1, 12, 5, 10, 0, time.UTC)
	due, _ = s.Due()
	assert.True(t, due)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC), s.Next())

	clock.t = clock.t.Add(20 * time.Second)
	due, _ = s.Due()
	assert.False(t, due)

	// several missed ticks fire once
	clock.t = time.Date(2024, 5, 1, 12, 23, 0, 0, time.UTC)
	due, _ = s.Due()
	assert.True(t, due)
	due, _ = s.Due()
	assert.False(t, due)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 25, 0, 0, time.UTC), s.Next())
}

func TestNewSchedule_Invalid(t *testing.T) {
	_, err := NewSchedule("every tuesday", nil)
	assert.ErrorContains(t, err, "invalid cron expression")
}

func TestScheduled_GatesNonReactive(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 59, 0, 0, time.UTC)}
	s, err := NewSchedule("0 9 * * *", clock.now)
	require.NoError(t, err)

	var runs int
	fn := Scheduled(s, func(context.Context, *bot.Bot, chat.Client) error {
		runs++
		return nil
	})

	c := &stubClient{}
	b := newBot(t, c)
	require.NoError(t, fn(context.Background(), b, c))
	assert.Equal(t, 0, runs)

	clock.t = time.Date(2024, 5, 1, 9, 0, 5, 0, time.UTC)
	require.NoError(t, fn(context.Background(), b, c))
	require.NoError(t, fn(context.Background(), b, c))
	assert.Equal(t, 1, runs)
}

func TestScheduled_ErrorNamesExpression(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 59, 0, 0, time.UTC)}
	morning, err := NewSchedule("0 9 * * *", clock.now)
	require.NoError(t, err)
	evening, err := NewSchedule("0 9,17 * * *", clock.now)
	require.NoError(t, err)

	c := &stubClient{}
	b := newBot(t, c)
	c.err = errors.New("rate limited")
	clock.t = time.Date(2024, 5, 1, 9, 0, 5, 0, time.UTC)

	err = Scheduled(morning, Announce("a"))(context.Background(), b, c)
	assert.ErrorContains(t, err, `schedule "0 9 * * *"`)
	assert.ErrorContains(t, err, "rate limited")
	err = Scheduled(evening, Announce("b"))(context.Background(), b, c)
	assert.ErrorContains(t, err, `schedule "0 9,17 * * *"`)
}

func TestAnnounce(t *testing.T) {
	c := &stubClient{}
	b := newBot(t, c)

	require.NoError(t, Announce("standup in 5", "dev")(context.Background(), b, c))
	assert.Equal(t, []string{"11:standup in 5"}, c.sent)

	c.sent = nil
	require.NoError(t, Announce("hello all")(context.Background(), b, c))
	assert.Equal(t, []string{"10:hello all", "11:hello all"}, c.sent)
}

func TestAnnounce_SendError(t *testing.T) {
	c := &stubClient{}
	b := newBot(t, c)
	c.err = errors.New("rate limited")
	err := Announce("x")(context.Background(), b, c)
	assert.ErrorContains(t, err, "announce in ops")
}

func TestPluginsRunThroughBotCycle(t *testing.T) {
	c := &stubClient{}
	b := newBot(t, c)
	b.RegisterNonReactive(Announce("tick", "ops"))
	b.RunCycle(context.Background())
	assert.Equal(t, []string{"10:tick"}, c.sent)
}
