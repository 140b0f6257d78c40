package model

import (
	"fmt"
	"time"
)

// Sender identifies who authored a conversation message: the human visitor
// or one of the agents.
type Sender string

// SenderUser is the human side of the scripted conversation.
const SenderUser Sender = "user"

// ConversationMessage is a line revealed in the live transcript.
type ConversationMessage struct {
	ID            string    `json:"id"`
	Sender        Sender    `json:"sender"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	ReactionEmoji string    `json:"reaction_emoji,omitempty"`
}

// MessageID builds a list-identity key from sender, reveal time and the
// position of the line within its scenario.
func MessageID(sender Sender, at time.Time, seq int) string {
	return fmt.Sprintf("%s-%d-%d", sender, at.UnixMilli(), seq)
}

// IsAgent reports whether the message was authored by an agent.
func (m ConversationMessage) IsAgent() bool {
	return m.Sender != SenderUser
}
