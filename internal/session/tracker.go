// Package session tracks which role is currently working, on which
// message, and which external process (typically an editor) is attached.
// One session is ACTIVE process-wide at a time.
package session

import (
	"context"
	"fmt"
	"os"
	"syscall"

	maerr "github.com/rcliao/agent-mail/internal/errors"
	"github.com/rcliao/agent-mail/internal/model"
	"github.com/rcliao/agent-mail/internal/store"
)

// ProcessController abstracts the host's view of external processes so the
// tracker stays testable without spawning any.
type ProcessController interface {
	Alive(pid int) bool
	Terminate(pid int) error
}

// OSProcessController implements ProcessController against the local OS.
type OSProcessController struct{}

func (OSProcessController) Alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}

func (OSProcessController) Terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

// Tracker owns the in-memory handle to the current session. The handle is
// always re-derivable from the store; NewTracker reloads it and reconciles
// a stale attached pid once, at startup.
type Tracker struct {
	store   store.Store
	proc    ProcessController
	current *model.Session
}

// NewTracker builds a tracker over the store, reloading any persisted
// ACTIVE session.
func NewTracker(ctx context.Context, s store.Store, proc ProcessController) (*Tracker, error) {
	if proc == nil {
		proc = OSProcessController{}
	}
	t := &Tracker{store: s, proc: proc}

	sess, err := s.ActiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload active session: %w", err)
	}
	if sess != nil && sess.AttachedPID != 0 && !proc.Alive(sess.AttachedPID) {
		pid := 0
		if err := s.UpdateSession(ctx, sess.ID, store.SessionUpdate{PID: &pid}); err != nil {
			return nil, fmt.Errorf("clear stale pid: %w", err)
		}
		sess.AttachedPID = 0
	}
	t.current = sess
	return t, nil
}

// Current returns the in-memory session handle, or nil.
func (t *Tracker) Current() *model.Session {
	return t.current
}

// Start opens a new ACTIVE session for the role.
func (t *Tracker) Start(ctx context.Context, role string) (*model.Session, error) {
	if t.current != nil {
		return nil, fmt.Errorf("session %d: %w", t.current.ID, maerr.ErrSessionActive)
	}
	sess, err := t.store.CreateSession(ctx, role)
	if err != nil {
		return nil, err
	}
	t.current = sess
	return sess, nil
}

func (t *Tracker) requireSession() error {
	if t.current == nil {
		return maerr.ErrNoSession
	}
	return nil
}

// SwitchRole changes which role the session is acting as.
func (t *Tracker) SwitchRole(ctx context.Context, role string) error {
	if err := t.requireSession(); err != nil {
		return err
	}
	if err := t.store.UpdateSession(ctx, t.current.ID, store.SessionUpdate{Role: &role}); err != nil {
		return err
	}
	t.current.CurrentRole = role
	return nil
}

// SetCurrentMessage points the session at the message being handled and
// appends a trace row.
func (t *Tracker) SetCurrentMessage(ctx context.Context, messageID string) error {
	if err := t.requireSession(); err != nil {
		return err
	}
	if err := t.store.UpdateSession(ctx, t.current.ID, store.SessionUpdate{MessageID: &messageID}); err != nil {
		return err
	}
	t.current.CurrentMessageID = messageID
	if messageID != "" {
		if err := t.store.AddSessionHistory(ctx, t.current.ID, t.current.CurrentRole, messageID, "focus"); err != nil {
			return err
		}
	}
	return nil
}

// AttachProcess binds an external process to the session.
func (t *Tracker) AttachProcess(ctx context.Context, pid int) error {
	if err := t.requireSession(); err != nil {
		return err
	}
	if err := t.store.UpdateSession(ctx, t.current.ID, store.SessionUpdate{PID: &pid}); err != nil {
		return err
	}
	t.current.AttachedPID = pid
	return nil
}

// RecordAction appends a trace row for the session's current message.
// No-op when no message is in focus.
func (t *Tracker) RecordAction(ctx context.Context, action string) error {
	if err := t.requireSession(); err != nil {
		return err
	}
	if t.current.CurrentMessageID == "" {
		return nil
	}
	return t.store.AddSessionHistory(ctx, t.current.ID, t.current.CurrentRole, t.current.CurrentMessageID, action)
}

// End completes the session. An attached process gets a best-effort
// terminate; failure there never blocks the close.
func (t *Tracker) End(ctx context.Context) error {
	if err := t.requireSession(); err != nil {
		return err
	}
	if pid := t.current.AttachedPID; pid != 0 {
		t.proc.Terminate(pid)
	}
	status := model.SessionCompleted
	if err := t.store.UpdateSession(ctx, t.current.ID, store.SessionUpdate{Status: &status}); err != nil {
		return err
	}
	t.current = nil
	return nil
}

// Pause suspends the session without touching its message or process.
func (t *Tracker) Pause(ctx context.Context) error {
	if err := t.requireSession(); err != nil {
		return err
	}
	status := model.SessionPaused
	if err := t.store.UpdateSession(ctx, t.current.ID, store.SessionUpdate{Status: &status}); err != nil {
		return err
	}
	t.current.Status = model.SessionPaused
	return nil
}

// Resume reactivates a paused session. A fresh tracker (one-shot CLI
// invocation) holds no handle to it, so the latest PAUSED row is looked up
// when needed.
func (t *Tracker) Resume(ctx context.Context) error {
	target := t.current
	if target == nil {
		paused, err := t.store.LatestSession(ctx, model.SessionPaused)
		if err != nil {
			return err
		}
		if paused == nil {
			return maerr.ErrNoSession
		}
		active, err := t.store.ActiveSession(ctx)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("session %d: %w", active.ID, maerr.ErrSessionActive)
		}
		target = paused
	}
	status := model.SessionActive
	if err := t.store.UpdateSession(ctx, target.ID, store.SessionUpdate{Status: &status}); err != nil {
		return err
	}
	target.Status = model.SessionActive
	t.current = target
	return nil
}
