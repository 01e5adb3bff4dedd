package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxChatMessageLength is the longest accepted chat message, in characters.
const MaxChatMessageLength = 2000

// ChatThread is a support conversation between one user (or guest) and the
// shop admins. Stored at chats/{id}; ID is the document id, not a field.
type ChatThread struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	UserEmail     string     `json:"userEmail"`
	CreatedAt     *time.Time `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt"`
	LastMessage   string     `json:"lastMessage"`
	UnreadByAdmin int        `json:"unreadByAdmin"`
	UnreadByUser  int        `json:"unreadByUser"`
	IsGuest       bool       `json:"isGuest"`
}

// ChatMessage is one message of a thread, stored at
// chats/{threadID}/messages/{id}.
//
// IsUser is true for messages written by the thread owner and false for
// admin replies. Timestamp is always assigned by the store.
type ChatMessage struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	SenderID    string    `json:"senderId"`
	SenderEmail string    `json:"senderEmail"`
	IsUser      bool      `json:"isUser"`
	Timestamp   time.Time `json:"timestamp"`
	ReadByAdmin bool      `json:"readByAdmin"`
	ReadByUser  bool      `json:"readByUser"`
}

// UnreadForUser reports whether this is an admin reply the user has not seen.
func (m *ChatMessage) UnreadForUser() bool {
	return !m.IsUser && !m.ReadByUser
}

// UnreadForAdmin reports whether this is a user message no admin has seen.
func (m *ChatMessage) UnreadForAdmin() bool {
	return m.IsUser && !m.ReadByAdmin
}

// ChatState is the view state of one chat session. It is rebuilt from the
// latest snapshot, never patched.
type ChatState struct {
	ThreadID    string        `json:"thread_id"`
	Messages    []ChatMessage `json:"messages"`
	UnreadCount int           `json:"unread_count"`
	Loading     bool          `json:"loading"`
	Error       string        `json:"error"`
}

// SendChatMessageRequest carries the text of a new message, from the chat
// socket or the admin reply endpoint.
type SendChatMessageRequest struct {
	Text string `json:"text"`
}

// Validate trims the text and checks its length.
func (r *SendChatMessageRequest) Validate() error {
	r.Text = strings.TrimSpace(r.Text)
	n := utf8.RuneCountInString(r.Text)
	if n < 1 {
		return fmt.Errorf("message text is required")
	}
	if n > MaxChatMessageLength {
		return fmt.Errorf("message text must be at most %d characters", MaxChatMessageLength)
	}
	return nil
}
