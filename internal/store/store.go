// Package store provides the mailbox storage interface and SQLite implementation.
package store

import (
	"context"

	"github.com/rcliao/agent-mail/internal/model"
)

// CreateParams holds parameters for creating a message.
type CreateParams struct {
	ID       string
	FromRole string
	ToRole   string
	Subject  string
	Content  string
	ReplyTo  string
}

// ListParams holds parameters for role-filtered listing.
// Exactly one of Status or ExcludedStatuses is honored per call; Status
// wins when both are supplied.
type ListParams struct {
	Role             string
	Status           model.Status
	IncludeSent      bool
	ExcludedStatuses []model.Status
}

// SessionUpdate holds a partial session mutation; nil fields are left
// untouched. LastActiveAt is always refreshed.
type SessionUpdate struct {
	Role      *string
	MessageID *string
	PID       *int
	Status    *model.SessionStatus
}

// Store defines the mailbox storage interface. Every mutating call runs in
// one transaction and appends a change-log row before committing.
type Store interface {
	// CreateMessage inserts a message with status unread plus its first
	// audit row. Fails with ErrDuplicateID if the id exists, and with
	// ErrNotFound if ReplyTo names a missing message.
	CreateMessage(ctx context.Context, p CreateParams) (*model.Message, error)

	// SetStatus transitions a message, applying the read/recall timestamp
	// rules, and appends an audit row.
	SetStatus(ctx context.Context, id string, status model.Status, note string) error

	// RecallMessage is the sender-only, unread-only transition to
	// recalled, checked and applied in one transaction.
	RecallMessage(ctx context.Context, id, fromRole string) error

	// GetMessage fetches one message by id.
	GetMessage(ctx context.Context, id string) (*model.Message, error)

	// GetStatus fetches just the status of a message.
	GetStatus(ctx context.Context, id string) (model.Status, error)

	// ListForRole returns messages addressed to (and optionally sent by)
	// the role, newest last_active_at first.
	ListForRole(ctx context.Context, p ListParams) ([]model.Message, error)

	// History returns the audit trail of a message, oldest first.
	History(ctx context.Context, id string) ([]model.StatusChange, error)

	// DeleteByStatus purges all messages in any of the given statuses,
	// cascading to their audit and session-history rows.
	DeleteByStatus(ctx context.Context, statuses ...model.Status) (int, error)

	// PollChanges reports whether any change-log row newer than
	// lastSeenID exists and, if so, the newest id.
	PollChanges(ctx context.Context, lastSeenID int64) (changed bool, newestID int64, err error)

	// CreateSession inserts an ACTIVE session; fails with
	// ErrSessionActive if one already is.
	CreateSession(ctx context.Context, role string) (*model.Session, error)

	// UpdateSession applies a partial mutation to a session.
	UpdateSession(ctx context.Context, id int64, u SessionUpdate) error

	// ActiveSession returns the single ACTIVE session, or nil.
	ActiveSession(ctx context.Context) (*model.Session, error)

	// LatestSession returns the most recently active session in the
	// given status, or nil.
	LatestSession(ctx context.Context, status model.SessionStatus) (*model.Session, error)

	// AddSessionHistory appends one trace row.
	AddSessionHistory(ctx context.Context, sessionID int64, role, messageID, action string) error

	// SessionTrail returns a session's trace rows, oldest first.
	SessionTrail(ctx context.Context, sessionID int64) ([]model.SessionHistory, error)

	// Stats summarizes the mailbox.
	Stats(ctx context.Context) (*MailStats, error)

	// Export streams every message with its history, oldest first.
	Export(ctx context.Context) ([]ExportedMessage, error)

	// Close closes the store.
	Close() error
}
