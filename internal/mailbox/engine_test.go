package mailbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	maerr "github.com/rcliao/agent-mail/internal/errors"
	"github.com/rcliao/agent-mail/internal/model"
	"github.com/rcliao/agent-mail/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, nil), s
}

func send(t *testing.T, e *Engine, from, to, content string) *model.Message {
	t.Helper()
	msg, err := e.Send(context.Background(), SendParams{
		From: from, To: to, Subject: "Test", Content: content,
	})
	require.NoError(t, err)
	return msg
}

func TestSendValidatesRoles(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	_, err := e.Send(ctx, SendParams{From: "Intern", To: "PM", Subject: "x", Content: "y"})
	assert.ErrorIs(t, err, maerr.ErrInvalidRole)

	_, err = e.Send(ctx, SendParams{From: "User", To: "Nobody", Subject: "x", Content: "y"})
	assert.ErrorIs(t, err, maerr.ErrInvalidRole)

	// A rejected send leaves no trace anywhere: no message, no audit row,
	// no change-log row to wake pollers.
	changed, _, err := s.PollChanges(ctx, 0)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSendIDFormat(t *testing.T) {
	e, _ := newTestEngine(t)

	at := time.Date(2026, 8, 30, 14, 5, 9, 0, time.UTC)
	id := e.newID("hello", at)
	assert.Regexp(t, `^20260830_140509_[0-9a-f]{8}$`, id)
	assert.Equal(t, id, e.newID("hello", at), "same content and time must hash identically")
	assert.NotEqual(t, id, e.newID("other", at))

	fb := e.fallbackID(at)
	assert.Regexp(t, `^20260830_140509_[0-9a-z]{8}$`, fb)
	assert.NotEqual(t, fb, e.fallbackID(at), "fallback ids must differ across calls")
}

// collideStore forces the first create to collide so the fallback path runs.
type collideStore struct {
	store.Store
	calls int
}

func (c *collideStore) CreateMessage(ctx context.Context, p store.CreateParams) (*model.Message, error) {
	c.calls++
	if c.calls == 1 {
		return nil, maerr.ErrDuplicateID
	}
	return c.Store.CreateMessage(ctx, p)
}

func TestSendDuplicateIDFallback(t *testing.T) {
	ctx := context.Background()
	_, s := newTestEngine(t)
	cs := &collideStore{Store: s}
	e := New(cs, nil)

	msg, err := e.Send(ctx, SendParams{From: "User", To: "PM", Subject: "x", Content: "y"})
	require.NoError(t, err)
	assert.Equal(t, 2, cs.calls)
	assert.NotEmpty(t, msg.ID)
}

func TestLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	msg := send(t, e, "User", "PM", "This is a test task")

	inbox, err := e.List(ctx, ListParams{Role: "PM"})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, msg.ID, inbox[0].ID)
	assert.Equal(t, model.StatusUnread, inbox[0].Status)

	// First transition stamps read_at.
	require.NoError(t, e.UpdateStatus(ctx, "PM", msg.ID, model.StatusProcessing, ""))
	got, err := e.Get(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReadAt)
	readAt := *got.ReadAt

	// A later transition leaves it untouched.
	require.NoError(t, e.UpdateStatus(ctx, "PM", msg.ID, model.StatusCompleted, ""))
	got, _ = e.Get(ctx, msg.ID)
	require.NotNil(t, got.ReadAt)
	assert.True(t, got.ReadAt.Equal(readAt))

	// Once read, the sender can no longer pull it back.
	err = e.Recall(ctx, "User", msg.ID)
	assert.ErrorIs(t, err, maerr.ErrAlreadyRead)
}

func TestRecallScenario(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	msg := send(t, e, "User", "PM", "changed my mind")

	require.NoError(t, e.Recall(ctx, "User", msg.ID))
	got, _ := e.Get(ctx, msg.ID)
	assert.Equal(t, model.StatusRecalled, got.Status)
	require.NotNil(t, got.RecalledAt)
	assert.Nil(t, got.ReadAt)

	// Recalled stays in the recipient's default listing so the
	// withdrawal is visible.
	inbox, err := e.List(ctx, ListParams{Role: "PM"})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.StatusRecalled, inbox[0].Status)
}

func TestRecallPermissions(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	msg := send(t, e, "User", "PM", "task")

	assert.ErrorIs(t, e.Recall(ctx, "Dev", msg.ID), maerr.ErrPermissionDenied)
	assert.ErrorIs(t, e.Recall(ctx, "Ghost", msg.ID), maerr.ErrInvalidRole)
	assert.ErrorIs(t, e.Recall(ctx, "User", "nope"), maerr.ErrNotFound)
}

func TestListDefaults(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	active := send(t, e, "User", "PM", "one")
	replied := send(t, e, "User", "PM", "two")
	done := send(t, e, "User", "PM", "three")
	parked := send(t, e, "User", "PM", "four")
	require.NoError(t, e.UpdateStatus(ctx, "PM", replied.ID, model.StatusReplied, ""))
	require.NoError(t, e.UpdateStatus(ctx, "PM", done.ID, model.StatusCompleted, ""))
	require.NoError(t, e.UpdateStatus(ctx, "PM", parked.ID, model.StatusArchived, ""))

	inbox, err := e.List(ctx, ListParams{Role: "PM"})
	require.NoError(t, err)
	require.Len(t, inbox, 1, "replied, completed and archived are handled by default")
	assert.Equal(t, active.ID, inbox[0].ID)

	withReplied, _ := e.List(ctx, ListParams{Role: "PM", IncludeReplied: true})
	assert.Len(t, withReplied, 2)

	// An explicit status filter overrides the exclusions entirely.
	completed, _ := e.List(ctx, ListParams{Role: "PM", Status: model.StatusCompleted})
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)

	// Sender sees nothing by default, everything with include-sent.
	sent, _ := e.List(ctx, ListParams{Role: "User"})
	assert.Empty(t, sent)
	sent, _ = e.List(ctx, ListParams{Role: "User", IncludeSent: true, IncludeReplied: true})
	assert.Len(t, sent, 2)

	_, err = e.List(ctx, ListParams{Role: "Ghost"})
	assert.ErrorIs(t, err, maerr.ErrInvalidRole)
}

func TestUpdateStatusHolderCheck(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	msg := send(t, e, "User", "PM", "task")

	// A bystander role holds no copy; reads the same as a missing id.
	err := e.UpdateStatus(ctx, "Dev", msg.ID, model.StatusProcessing, "")
	assert.ErrorIs(t, err, maerr.ErrNotFound)

	// The sender holds their sent copy.
	assert.NoError(t, e.UpdateStatus(ctx, "User", msg.ID, model.StatusArchived, ""))

	assert.ErrorIs(t, e.UpdateStatus(ctx, "PM", "nope", model.StatusProcessing, ""), maerr.ErrNotFound)
	assert.Error(t, e.UpdateStatus(ctx, "PM", msg.ID, model.Status("bogus"), ""))
}

func TestHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	msg := send(t, e, "User", "PM", "task")

	history, err := e.History(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, history, 1, "exactly one audit entry before any transition")
	assert.Equal(t, model.StatusUnread, history[0].Status)
	assert.Equal(t, "created", history[0].Note)
}

func TestReplyThreadViaEngine(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	parent := send(t, e, "User", "PM", "question")

	reply, err := e.Send(ctx, SendParams{
		From: "PM", To: "User", Subject: "Re: Test", Content: "answer", ReplyTo: parent.ID,
	})
	require.NoError(t, err)

	got, _ := e.Get(ctx, parent.ID)
	assert.Equal(t, []string{reply.ID}, got.Replies)
}

func TestDeleteCompleted(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	done := send(t, e, "User", "PM", "one")
	parked := send(t, e, "User", "PM", "two")
	send(t, e, "User", "PM", "three")
	require.NoError(t, e.UpdateStatus(ctx, "PM", done.ID, model.StatusCompleted, ""))
	require.NoError(t, e.UpdateStatus(ctx, "PM", parked.ID, model.StatusArchived, ""))

	n, err := e.DeleteCompleted(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.DeleteCompleted(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPollChangesContract(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	changed, newest, err := e.PollChanges(ctx, 0)
	require.NoError(t, err)
	assert.False(t, changed)

	send(t, e, "User", "PM", "wake up")
	changed, newest, _ = e.PollChanges(ctx, newest)
	require.True(t, changed)

	// At or past the head, nothing is reported.
	changed, _, _ = e.PollChanges(ctx, newest)
	assert.False(t, changed)
	changed, _, _ = e.PollChanges(ctx, newest+100)
	assert.False(t, changed)
}

func TestCustomRoles(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := New(s, []string{"Alice", "Bob"})
	_, err = e.Send(ctx, SendParams{From: "Alice", To: "Bob", Subject: "hi", Content: "x"})
	assert.NoError(t, err)
	_, err = e.Send(ctx, SendParams{From: "User", To: "PM", Subject: "hi", Content: "x"})
	assert.ErrorIs(t, err, maerr.ErrInvalidRole)
}
