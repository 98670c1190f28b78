package store

import (
	"context"
	"errors"
	"testing"

	maerr "github.com/rcliao/agent-mail/internal/errors"
	"github.com/rcliao/agent-mail/internal/model"
)

func TestCreateSessionSingleActive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "PM")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.Status != model.SessionActive || sess.CurrentRole != "PM" {
		t.Errorf("unexpected session: %+v", sess)
	}

	if _, err := s.CreateSession(ctx, "Dev"); !errors.Is(err, maerr.ErrSessionActive) {
		t.Errorf("expected ErrSessionActive, got %v", err)
	}

	// Completing the first frees the slot.
	done := model.SessionCompleted
	if err := s.UpdateSession(ctx, sess.ID, SessionUpdate{Status: &done}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := s.CreateSession(ctx, "Dev"); err != nil {
		t.Errorf("expected new session after completion, got %v", err)
	}
}

func TestUpdateSessionPartial(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreate(t, s, "m1", "User", "PM")
	sess, _ := s.CreateSession(ctx, "PM")

	msgID := "m1"
	pid := 4321
	if err := s.UpdateSession(ctx, sess.ID, SessionUpdate{MessageID: &msgID, PID: &pid}); err != nil {
		t.Fatalf("update: %v", err)
	}

	active, _ := s.ActiveSession(ctx)
	if active.CurrentMessageID != "m1" || active.AttachedPID != 4321 {
		t.Errorf("partial update lost fields: %+v", active)
	}
	if active.CurrentRole != "PM" {
		t.Errorf("untouched field changed: %+v", active)
	}

	// Zero values clear optional fields.
	clearPid := 0
	s.UpdateSession(ctx, sess.ID, SessionUpdate{PID: &clearPid})
	active, _ = s.ActiveSession(ctx)
	if active.AttachedPID != 0 {
		t.Errorf("pid should be cleared, got %d", active.AttachedPID)
	}

	if err := s.UpdateSession(ctx, 9999, SessionUpdate{PID: &pid}); !errors.Is(err, maerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestSessionByStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if sess, err := s.ActiveSession(ctx); err != nil || sess != nil {
		t.Fatalf("expected no session, got %+v err %v", sess, err)
	}

	created, _ := s.CreateSession(ctx, "PM")
	paused := model.SessionPaused
	s.UpdateSession(ctx, created.ID, SessionUpdate{Status: &paused})

	if sess, _ := s.ActiveSession(ctx); sess != nil {
		t.Errorf("paused session leaked into ActiveSession: %+v", sess)
	}
	sess, err := s.LatestSession(ctx, model.SessionPaused)
	if err != nil || sess == nil || sess.ID != created.ID {
		t.Errorf("expected paused session %d, got %+v err %v", created.ID, sess, err)
	}
}

func TestSessionTrail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreate(t, s, "m1", "User", "PM")
	sess, _ := s.CreateSession(ctx, "PM")

	s.AddSessionHistory(ctx, sess.ID, "PM", "m1", "focus")
	s.AddSessionHistory(ctx, sess.ID, "PM", "m1", "update-status")

	trail, err := s.SessionTrail(ctx, sess.ID)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(trail) != 2 || trail[0].Action != "focus" || trail[1].Action != "update-status" {
		t.Errorf("unexpected trail: %v", trail)
	}

	// Purging the message cascades its trail rows.
	s.SetStatus(ctx, "m1", model.StatusCompleted, "")
	s.DeleteByStatus(ctx, model.StatusCompleted)
	trail, _ = s.SessionTrail(ctx, sess.ID)
	if len(trail) != 0 {
		t.Errorf("trail should cascade with message deletion, got %v", trail)
	}
}
