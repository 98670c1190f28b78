// Package model defines the core mailbox data types.
package model

import "time"

// Message is the unit of work handed between roles. Older parts of the
// tooling call it a "mail", newer parts a "task"; it is one entity.
type Message struct {
	ID           string     `json:"id"`
	FromRole     string     `json:"from_role"`
	ToRole       string     `json:"to_role"`
	Subject      string     `json:"subject"`
	Content      string     `json:"content"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
	RecalledAt   *time.Time `json:"recalled_at,omitempty"`
	ReplyTo      string     `json:"reply_to,omitempty"`
	Replies      []string   `json:"replies,omitempty"`
	LastActiveAt time.Time  `json:"last_active_at"`
}

// StatusChange is one append-only audit row, written on creation and on
// every status transition of its message.
type StatusChange struct {
	ID        int64     `json:"id"`
	MessageID string    `json:"message_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// ChangeLogEntry is one row of the monotonic change log. Pollers keep the
// last id they saw and ask "anything newer"; the log carries no per-entity
// filtering on purpose.
type ChangeLogEntry struct {
	ID         int64     `json:"id"`
	ChangeType string    `json:"change_type"`
	Timestamp  time.Time `json:"timestamp"`
	Details    string    `json:"details,omitempty"`
}

// Session binds a role to its current working context: the message being
// handled and, optionally, an attached external process such as an editor.
type Session struct {
	ID               int64         `json:"id"`
	CurrentRole      string        `json:"current_role"`
	CurrentMessageID string        `json:"current_message_id,omitempty"`
	AttachedPID      int           `json:"attached_pid,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	LastActiveAt     time.Time     `json:"last_active_at"`
	Status           SessionStatus `json:"status"`
}

// SessionHistory is one append-only row tracing what a session did to
// which message.
type SessionHistory struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Role      string    `json:"role"`
	MessageID string    `json:"message_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Status is a message lifecycle state.
type Status string

const (
	StatusUnread     Status = "unread"
	StatusProcessing Status = "processing"
	StatusReplied    Status = "replied"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
	StatusRecalled   Status = "recalled"
)

// ValidStatuses are the allowed message statuses.
var ValidStatuses = map[Status]bool{
	StatusUnread:     true,
	StatusProcessing: true,
	StatusReplied:    true,
	StatusCompleted:  true,
	StatusArchived:   true,
	StatusRecalled:   true,
}

// SessionStatus is a session lifecycle state. The uppercase spelling is
// kept distinct from message statuses so the two enums never mix.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionPaused    SessionStatus = "PAUSED"
	SessionCompleted SessionStatus = "COMPLETED"
)

// DefaultRoles is the allow-list used when no roles are configured.
var DefaultRoles = []string{"User", "PM", "Dev", "DS"}

// Change types written to the change log.
const (
	ChangeCreate        = "create"
	ChangeStatusUpdate  = "status_update"
	ChangeDelete        = "delete"
	ChangeSessionUpdate = "session_update"
)
