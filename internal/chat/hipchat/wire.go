package hipchat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dayuer/hipbot-go/internal/chat"
)

// flexID accepts both numeric and string ids.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type wireUser struct {
	ID          flexID `json:"id"`
	Name        string `json:"name"`
	MentionName string `json:"mention_name"`
}

func (u wireUser) user() chat.User {
	return chat.User{ID: string(u.ID), Name: u.Name, MentionName: u.MentionName}
}

type wireRoom struct {
	ID   flexID `json:"id"`
	Name string `json:"name"`
}

// wireAuthor decodes the "from" field, which is a user object for people
// and a plain string for integrations and notifications.
type wireAuthor struct {
	author chat.Author
}

func (a *wireAuthor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		a.author = chat.Author{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		a.author = chat.RawAuthor(s)
	default:
		var u wireUser
		if err := json.Unmarshal(data, &u); err != nil {
			return fmt.Errorf("decode author: %w", err)
		}
		a.author = chat.ResolvedAuthor(u.user())
	}
	return nil
}

type wireMessage struct {
	ID      string     `json:"id"`
	From    wireAuthor `json:"from"`
	Message string     `json:"message"`
	Date    time.Time  `json:"date"`
}

func (m wireMessage) message() chat.Message {
	return chat.Message{ID: m.ID, From: m.From.author, Body: m.Message, Date: m.Date}
}
