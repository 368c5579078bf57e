// Package watermark tracks the last message seen in each room.
package watermark

import (
	"sync"

	"github.com/dayuer/hipbot-go/internal/chat"
)

// Tracker maps room ids to the last message seen there. The zero value is
// not usable; call New.
type Tracker struct {
	mu    sync.RWMutex
	marks map[string]chat.Message
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{marks: make(map[string]chat.Message)}
}

// Get returns the watermark for a room, or false if none has been set.
func (t *Tracker) Get(roomID string) (chat.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.marks[roomID]
	return m, ok
}

// Set records msg as the room's watermark. A message dated strictly before
// the current watermark is ignored, so a watermark never moves backwards.
// Set reports whether the watermark changed.
func (t *Tracker) Set(roomID string, msg chat.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.marks[roomID]; ok {
		if cur.ID == msg.ID {
			return false
		}
		if !cur.Date.IsZero() && !msg.Date.IsZero() && msg.Date.Before(cur.Date) {
			return false
		}
	}
	t.marks[roomID] = msg
	return true
}

// Len returns the number of rooms with a watermark.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.marks)
}
