// Package chat defines the room, user and message types the bot works with
// and the Client capability that talks to the remote chat service.
package chat

import (
	"context"
	"time"
)

// Client is the interface every chat service backend must implement.
// Messages are always returned oldest first.
type Client interface {
	// ListUsers returns every user visible to the token.
	ListUsers(ctx context.Context) ([]User, error)

	// ListRooms returns every room visible to the token.
	ListRooms(ctx context.Context) ([]Room, error)

	// RoomHistory returns the most recent page of a room's history.
	RoomHistory(ctx context.Context, roomID string) ([]Message, error)

	// RoomMessagesSince returns the messages posted in a room since messageID,
	// normally including messageID itself as the first element.
	RoomMessagesSince(ctx context.Context, roomID, messageID string) ([]Message, error)

	// SendMessage posts text to a room.
	SendMessage(ctx context.Context, roomID, text string) error
}

// Room is a chat room.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is a chat service account.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MentionName string `json:"mention_name,omitempty"`
}

// Message is a single room message.
type Message struct {
	ID   string    `json:"id"`
	From Author    `json:"from"`
	Body string    `json:"message"`
	Date time.Time `json:"date"`
}

// Author identifies who posted a message. The service returns either a full
// user object or a bare identifier, so exactly one of User and Raw is set.
type Author struct {
	User *User  `json:"user,omitempty"`
	Raw  string `json:"raw,omitempty"`
}

// ResolvedAuthor returns an Author backed by a resolved user.
func ResolvedAuthor(u User) Author {
	return Author{User: &u}
}

// RawAuthor returns an Author backed by a bare id or name string.
func RawAuthor(s string) Author {
	return Author{Raw: s}
}

// IsResolved reports whether the author carries a full user.
func (a Author) IsResolved() bool {
	return a.User != nil
}

// IsSelf reports whether the author is the given user. Resolved authors are
// matched by id, raw authors by id or name.
func (a Author) IsSelf(self User) bool {
	if a.User != nil {
		return a.User.ID == self.ID
	}
	return a.Raw == self.ID || a.Raw == self.Name
}

// String returns a display name for logs.
func (a Author) String() string {
	if a.User != nil {
		return a.User.Name
	}
	return a.Raw
}
