package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	maerr "github.com/rcliao/agent-mail/internal/errors"
	"github.com/rcliao/agent-mail/internal/model"
)

func (s *SQLiteStore) CreateSession(ctx context.Context, role string) (*model.Session, error) {
	started, ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage("begin tx", err)
	}
	defer tx.Rollback()

	// One ACTIVE session process-wide; the check and the insert share a
	// transaction so two starters cannot both win.
	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM sessions WHERE status = ? LIMIT 1`, string(model.SessionActive)).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("session %d: %w", existing, maerr.ErrSessionActive)
	}
	if err != sql.ErrNoRows {
		return nil, storage("check active session", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (current_role, started_at, last_active_at, status) VALUES (?, ?, ?, ?)`,
		role, ts, ts, string(model.SessionActive))
	if err != nil {
		return nil, storage("insert session", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storage("session id", err)
	}

	if err := appendChange(ctx, tx, model.ChangeSessionUpdate, ts, fmt.Sprintf("Session %d started by %s", id, role)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storage("commit", err)
	}

	return &model.Session{
		ID:           id,
		CurrentRole:  role,
		StartedAt:    started,
		LastActiveAt: started,
		Status:       model.SessionActive,
	}, nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, id int64, u SessionUpdate) error {
	_, ts := now()

	updates := []string{"last_active_at = ?"}
	args := []interface{}{ts}
	if u.Role != nil {
		updates = append(updates, "current_role = ?")
		args = append(args, *u.Role)
	}
	if u.MessageID != nil {
		updates = append(updates, "current_message_id = ?")
		if *u.MessageID == "" {
			args = append(args, nil)
		} else {
			args = append(args, *u.MessageID)
		}
	}
	if u.PID != nil {
		updates = append(updates, "attached_pid = ?")
		if *u.PID == 0 {
			args = append(args, nil)
		} else {
			args = append(args, *u.PID)
		}
	}
	if u.Status != nil {
		updates = append(updates, "status = ?")
		args = append(args, string(*u.Status))
	}
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage("begin tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE sessions SET %s WHERE id = ?`, strings.Join(updates, ", ")), args...)
	if err != nil {
		return storage("update session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, maerr.ErrNotFound)
	}

	if err := appendChange(ctx, tx, model.ChangeSessionUpdate, ts, fmt.Sprintf("Session %d updated", id)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storage("commit", err)
	}
	return nil
}

func (s *SQLiteStore) ActiveSession(ctx context.Context) (*model.Session, error) {
	return s.LatestSession(ctx, model.SessionActive)
}

func (s *SQLiteStore) LatestSession(ctx context.Context, status model.SessionStatus) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, current_role, current_message_id, attached_pid, started_at, last_active_at, status
		 FROM sessions WHERE status = ? ORDER BY last_active_at DESC LIMIT 1`,
		string(status))

	var sess model.Session
	var messageID sql.NullString
	var pid sql.NullInt64
	var startedAt, lastActiveAt, st string
	err := row.Scan(&sess.ID, &sess.CurrentRole, &messageID, &pid, &startedAt, &lastActiveAt, &st)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storage("load session", err)
	}
	sess.CurrentMessageID = messageID.String
	sess.AttachedPID = int(pid.Int64)
	sess.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	sess.LastActiveAt, _ = time.Parse(time.RFC3339, lastActiveAt)
	sess.Status = model.SessionStatus(st)
	return &sess, nil
}

func (s *SQLiteStore) AddSessionHistory(ctx context.Context, sessionID int64, role, messageID, action string) error {
	_, ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_history (session_id, role, message_id, action, timestamp) VALUES (?, ?, ?, ?, ?)`,
		sessionID, role, messageID, action, ts)
	if err != nil {
		return storage("insert session history", err)
	}
	return nil
}

func (s *SQLiteStore) SessionTrail(ctx context.Context, sessionID int64) ([]model.SessionHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, message_id, action, timestamp FROM session_history
		 WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, storage("list session history", err)
	}
	defer rows.Close()

	var trail []model.SessionHistory
	for rows.Next() {
		var h model.SessionHistory
		var ts string
		if err := rows.Scan(&h.ID, &h.SessionID, &h.Role, &h.MessageID, &h.Action, &ts); err != nil {
			return nil, storage("scan session history", err)
		}
		h.Timestamp, _ = time.Parse(time.RFC3339, ts)
		trail = append(trail, h)
	}
	return trail, rows.Err()
}
