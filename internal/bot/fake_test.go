package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dayuer/hipbot-go/internal/chat"
)

var (
	botUser = chat.User{ID: "7", Name: "hipbot", MentionName: "bot"}
	alice   = chat.User{ID: "1", Name: "Alice", MentionName: "alice"}
)

// fakeClient is an in-memory chat service. Each room keeps its full log and
// RoomMessagesSince returns the log from the given id onwards, like the real
// not-before query.
type fakeClient struct {
	mu       sync.Mutex
	users    []chat.User
	rooms    []chat.Room
	logs     map[string][]chat.Message
	failing  map[string]error
	listErr  error
	sent     []string
	sentSeq  int
	historyN int
}

func newFakeClient(rooms ...chat.Room) *fakeClient {
	return &fakeClient{
		users:   []chat.User{alice, botUser},
		rooms:   rooms,
		logs:    make(map[string][]chat.Message),
		failing: make(map[string]error),
	}
}

func (f *fakeClient) post(roomID string, msgs ...chat.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[roomID] = append(f.logs[roomID], msgs...)
}

func (f *fakeClient) fail(roomID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failing, roomID)
		return
	}
	f.failing[roomID] = err
}

func (f *fakeClient) ListUsers(context.Context) ([]chat.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.users, nil
}

func (f *fakeClient) ListRooms(context.Context) ([]chat.Room, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rooms, nil
}

func (f *fakeClient) RoomHistory(_ context.Context, roomID string) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyN++
	if err := f.failing[roomID]; err != nil {
		return nil, err
	}
	return append([]chat.Message(nil), f.logs[roomID]...), nil
}

func (f *fakeClient) RoomMessagesSince(_ context.Context, roomID, messageID string) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing[roomID]; err != nil {
		return nil, err
	}
	log := f.logs[roomID]
	for i, m := range log {
		if m.ID == messageID {
			return append([]chat.Message(nil), log[i:]...), nil
		}
	}
	return append([]chat.Message(nil), log...), nil
}

func (f *fakeClient) SendMessage(_ context.Context, roomID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentSeq++
	f.sent = append(f.sent, roomID+":"+text)
	f.logs[roomID] = append(f.logs[roomID], chat.Message{
		ID:   fmt.Sprintf("sent-%d", f.sentSeq),
		From: chat.ResolvedAuthor(botUser),
		Body: text,
	})
	return nil
}

func msgFrom(id string, from chat.Author) chat.Message {
	return chat.Message{ID: id, From: from, Body: "body " + id}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
