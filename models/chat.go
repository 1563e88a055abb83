package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one entry of a chat session
type Message struct {
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat represents a conversation session. Messages are kept in insertion order.
type Chat struct {
	ID        uuid.UUID `json:"_id"`
	UserID    uuid.UUID `json:"userId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// LastMessage returns the newest entry, or nil for an empty session
func (c *Chat) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	m := c.Messages[len(c.Messages)-1]
	return &m
}

// ChatSummary is the short form of a chat embedded in a profile
type ChatSummary struct {
	ID        uuid.UUID `json:"_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}
