package bot

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/dayuer/hipbot-go/internal/chat"
)

// Reactive is called once for every new message in a watched room.
type Reactive func(ctx context.Context, room chat.Room, msg chat.Message, b *Bot, c chat.Client) error

// NonReactive is called once per poll cycle.
type NonReactive func(ctx context.Context, b *Bot, c chat.Client) error

// Registry holds plugins in registration order. Duplicates are kept and
// invoked once per registration.
type Registry struct {
	mu           sync.RWMutex
	reactives    []Reactive
	nonReactives []NonReactive
}

// RegisterReactive appends a reactive plugin.
func (r *Registry) RegisterReactive(fn Reactive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactives = append(r.reactives, fn)
}

// RegisterNonReactive appends a non-reactive plugin.
func (r *Registry) RegisterNonReactive(fn NonReactive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonReactives = append(r.nonReactives, fn)
}

// Reactives returns a snapshot of the reactive plugins.
func (r *Registry) Reactives() []Reactive {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Reactive(nil), r.reactives...)
}

// NonReactives returns a snapshot of the non-reactive plugins.
func (r *Registry) NonReactives() []NonReactive {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]NonReactive(nil), r.nonReactives...)
}

// PluginError reports a plugin that returned an error or panicked.
type PluginError struct {
	Plugin    string
	Kind      string
	RoomID    string
	MessageID string
	Err       error
}

func (e *PluginError) Error() string {
	if e.MessageID != "" {
		return fmt.Sprintf("%s plugin %s failed on message %s: %v", e.Kind, e.Plugin, e.MessageID, e.Err)
	}
	return fmt.Sprintf("%s plugin %s failed: %v", e.Kind, e.Plugin, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

// invoke runs fn and turns a panic into an error.
func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// PluginName returns the function symbol of a plugin for logs.
func PluginName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "<nil>"
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return "<unknown>"
}
