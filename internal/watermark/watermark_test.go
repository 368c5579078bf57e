package watermark

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/hipbot-go/internal/chat"
)

func TestTracker_GetUnset(t *testing.T) {
	tr := New()
	_, ok := tr.Get("ops")
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_SetAndGet(t *testing.T) {
	tr := New()
	assert.True(t, tr.Set("ops", chat.Message{ID: "42"}))

	m, ok := tr.Get("ops")
	require.True(t, ok)
	assert.Equal(t, "42", m.ID)
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_SameIDIsNoop(t *testing.T) {
	tr := New()
	tr.Set("ops", chat.Message{ID: "42"})
	assert.False(t, tr.Set("ops", chat.Message{ID: "42"}))
}

func TestTracker_NeverRewinds(t *testing.T) {
	now := time.Now()
	tr := New()
	tr.Set("ops", chat.Message{ID: "b", Date: now})

	assert.False(t, tr.Set("ops", chat.Message{ID: "a", Date: now.Add(-time.Minute)}))
	m, _ := tr.Get("ops")
	assert.Equal(t, "b", m.ID)

	assert.True(t, tr.Set("ops", chat.Message{ID: "c", Date: now.Add(time.Minute)}))
	m, _ = tr.Get("ops")
	assert.Equal(t, "c", m.ID)
}

func TestTracker_UndatedMessagesAdvance(t *testing.T) {
	tr := New()
	tr.Set("ops", chat.Message{ID: "42"})
	assert.True(t, tr.Set("ops", chat.Message{ID: "43"}))
}

func TestTracker_RoomsIndependent(t *testing.T) {
	tr := New()
	tr.Set("ops", chat.Message{ID: "1"})
	tr.Set("dev", chat.Message{ID: "2"})

	m, _ := tr.Get("ops")
	assert.Equal(t, "1", m.ID)
	m, _ = tr.Get("dev")
	assert.Equal(t, "2", m.ID)
}

func TestTracker_ConcurrentReads(t *testing.T) {
	tr := New()
	tr.Set("ops", chat.Message{ID: "1"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tr.Get("ops")
			_ = tr.Len()
		}()
	}
	wg.Wait()
}
