// Package mailbox implements the business rules over the message store:
// role validation, id generation, recall eligibility, reply threading, and
// the default "what do I have to do" filtering.
package mailbox

import (
	"context"
	"crypto/md5"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	maerr "github.com/rcliao/agent-mail/internal/errors"
	"github.com/rcliao/agent-mail/internal/model"
	"github.com/rcliao/agent-mail/internal/store"
)

// Engine coordinates mailbox operations for a fixed set of roles.
type Engine struct {
	store   store.Store
	roles   map[string]bool
	entropy *rand.Rand
}

// New builds an engine over the given store. An empty role list falls back
// to the defaults.
func New(s store.Store, roles []string) *Engine {
	if len(roles) == 0 {
		roles = model.DefaultRoles
	}
	set := make(map[string]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return &Engine{
		store:   s,
		roles:   set,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Roles returns the configured allow-list in no particular order.
func (e *Engine) Roles() []string {
	out := make([]string, 0, len(e.roles))
	for r := range e.roles {
		out = append(out, r)
	}
	return out
}

func (e *Engine) validRole(role string) error {
	if !e.roles[role] {
		return fmt.Errorf("role %q: %w", role, maerr.ErrInvalidRole)
	}
	return nil
}

// newID builds the human-scannable id: a timestamp prefix plus an
// 8-character content hash. Sortable by creation order; collision-resistant
// for low-throughput workflows, not guaranteed.
func (e *Engine) newID(content string, at time.Time) string {
	sum := md5.Sum([]byte(content))
	return fmt.Sprintf("%s_%x", at.Format("20060102_150405"), sum[:4])
}

// fallbackID keeps the timestamp prefix as a display aid and swaps the
// content hash for ULID entropy after an id collision.
func (e *Engine) fallbackID(at time.Time) string {
	u := ulid.MustNew(ulid.Timestamp(at), e.entropy).String()
	return fmt.Sprintf("%s_%s", at.Format("20060102_150405"), strings.ToLower(u[len(u)-8:]))
}

// SendParams holds parameters for sending a message.
type SendParams struct {
	From    string
	To      string
	Subject string
	Content string
	ReplyTo string
}

// Send validates both roles, generates an id, and creates the message
// unread. A ReplyTo id links the new message into the referenced thread.
func (e *Engine) Send(ctx context.Context, p SendParams) (*model.Message, error) {
	if err := e.validRole(p.From); err != nil {
		return nil, err
	}
	if err := e.validRole(p.To); err != nil {
		return nil, err
	}

	at := time.Now()
	msg, err := e.store.CreateMessage(ctx, store.CreateParams{
		ID:       e.newID(p.Content, at),
		FromRole: p.From,
		ToRole:   p.To,
		Subject:  p.Subject,
		Content:  p.Content,
		ReplyTo:  p.ReplyTo,
	})
	if maerr.Is(err, maerr.ErrDuplicateID) {
		msg, err = e.store.CreateMessage(ctx, store.CreateParams{
			ID:       e.fallbackID(at),
			FromRole: p.From,
			ToRole:   p.To,
			Subject:  p.Subject,
			Content:  p.Content,
			ReplyTo:  p.ReplyTo,
		})
	}
	return msg, err
}

// Recall cancels an unread message. Only the original sender may recall,
// and only while read_at is absent; the store decides the race.
func (e *Engine) Recall(ctx context.Context, fromRole, id string) error {
	if err := e.validRole(fromRole); err != nil {
		return err
	}
	return e.store.RecallMessage(ctx, id, fromRole)
}

// UpdateStatus moves a message the acting role holds to a new status. The
// four working states are not strictly ordered; the machine records
// auditable progress, not a workflow gate.
func (e *Engine) UpdateStatus(ctx context.Context, role, id string, status model.Status, note string) error {
	if err := e.validRole(role); err != nil {
		return err
	}
	if !model.ValidStatuses[status] {
		return fmt.Errorf("invalid status %q", status)
	}

	msg, err := e.store.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	// Holder check: recipient always, sender via their sent copy. A miss
	// reads the same as an absent id on purpose.
	if msg.ToRole != role && msg.FromRole != role {
		return fmt.Errorf("message %s not held by %s: %w", id, role, maerr.ErrNotFound)
	}

	return e.store.SetStatus(ctx, id, status, note)
}

// ListParams holds parameters for listing a role's messages.
type ListParams struct {
	Role           string
	Status         model.Status
	IncludeSent    bool
	IncludeReplied bool
}

// List returns the role's active work, newest first. With no explicit
// status filter, completed and archived are excluded, and replied too
// unless the caller opts in; recalled stays visible so the recipient can
// see what was withdrawn.
func (e *Engine) List(ctx context.Context, p ListParams) ([]model.Message, error) {
	if err := e.validRole(p.Role); err != nil {
		return nil, err
	}
	if p.Status != "" && !model.ValidStatuses[p.Status] {
		return nil, fmt.Errorf("invalid status %q", p.Status)
	}

	excluded := []model.Status{model.StatusCompleted, model.StatusArchived}
	if !p.IncludeReplied {
		excluded = append(excluded, model.StatusReplied)
	}

	return e.store.ListForRole(ctx, store.ListParams{
		Role:             p.Role,
		Status:           p.Status,
		IncludeSent:      p.IncludeSent,
		ExcludedStatuses: excluded,
	})
}

// Get fetches one message by id.
func (e *Engine) Get(ctx context.Context, id string) (*model.Message, error) {
	return e.store.GetMessage(ctx, id)
}

// History returns a message's audit trail, oldest first.
func (e *Engine) History(ctx context.Context, id string) ([]model.StatusChange, error) {
	return e.store.History(ctx, id)
}

// PollChanges reports whether anything happened after lastSeenID. Callers
// persist the returned newest id and pass it back next time.
func (e *Engine) PollChanges(ctx context.Context, lastSeenID int64) (bool, int64, error) {
	return e.store.PollChanges(ctx, lastSeenID)
}

// DeleteCompleted purges completed messages, and archived ones too when
// includeArchived is set. Audit and session-history rows go with them.
func (e *Engine) DeleteCompleted(ctx context.Context, includeArchived bool) (int, error) {
	statuses := []model.Status{model.StatusCompleted}
	if includeArchived {
		statuses = append(statuses, model.StatusArchived)
	}
	return e.store.DeleteByStatus(ctx, statuses...)
}
