package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	maerr "github.com/rcliao/agent-mail/internal/errors"
	"github.com/rcliao/agent-mail/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id             TEXT PRIMARY KEY,
		from_role      TEXT NOT NULL,
		to_role        TEXT NOT NULL,
		subject        TEXT NOT NULL,
		content        TEXT NOT NULL,
		status         TEXT NOT NULL,
		created_at     TEXT NOT NULL,
		read_at        TEXT,
		recalled_at    TEXT,
		reply_to       TEXT,
		replies        TEXT,
		last_active_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_to_role ON messages(to_role, status);
	CREATE INDEX IF NOT EXISTS idx_messages_from_role ON messages(from_role);
	CREATE INDEX IF NOT EXISTS idx_messages_active ON messages(last_active_at DESC);

	CREATE TABLE IF NOT EXISTS status_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		status     TEXT NOT NULL,
		timestamp  TEXT NOT NULL,
		note       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_history_message ON status_history(message_id);

	CREATE TABLE IF NOT EXISTS changes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		change_type TEXT NOT NULL,
		change_time TEXT NOT NULL,
		details     TEXT
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		current_role       TEXT NOT NULL,
		current_message_id TEXT REFERENCES messages(id) ON DELETE SET NULL,
		attached_pid       INTEGER,
		started_at         TEXT NOT NULL,
		last_active_at     TEXT NOT NULL,
		status             TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

	CREATE TABLE IF NOT EXISTS session_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id),
		role       TEXT NOT NULL,
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		action     TEXT NOT NULL,
		timestamp  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_history_session ON session_history(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func now() (time.Time, string) {
	t := time.Now().UTC().Truncate(time.Second)
	return t, t.Format(time.RFC3339)
}

// storage tags an unclassified database failure so callers can match it
// with errors.Is against ErrStorage.
func storage(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, maerr.ErrStorage)
}

func appendChange(ctx context.Context, tx *sql.Tx, changeType, ts, details string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO changes (change_type, change_time, details) VALUES (?, ?, ?)`,
		changeType, ts, details)
	if err != nil {
		return storage("append change", err)
	}
	return nil
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, p CreateParams) (*model.Message, error) {
	created, ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage("begin tx", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, p.ID).Scan(&exists)
	if err == nil {
		return nil, fmt.Errorf("message %s: %w", p.ID, maerr.ErrDuplicateID)
	}
	if err != sql.ErrNoRows {
		return nil, storage("check id", err)
	}

	var replyTo *string
	if p.ReplyTo != "" {
		// Link the new id into the parent thread inside the same tx.
		var repliesJSON sql.NullString
		err = tx.QueryRowContext(ctx, `SELECT replies FROM messages WHERE id = ?`, p.ReplyTo).Scan(&repliesJSON)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("reply_to %s: %w", p.ReplyTo, maerr.ErrNotFound)
		}
		if err != nil {
			return nil, storage("load thread", err)
		}
		var replies []string
		if repliesJSON.Valid && repliesJSON.String != "" {
			json.Unmarshal([]byte(repliesJSON.String), &replies)
		}
		replies = append(replies, p.ID)
		b, _ := json.Marshal(replies)
		if _, err := tx.ExecContext(ctx, `UPDATE messages SET replies = ? WHERE id = ?`, string(b), p.ReplyTo); err != nil {
			return nil, storage("update thread", err)
		}
		replyTo = &p.ReplyTo
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, from_role, to_role, subject, content, status, created_at, reply_to, last_active_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.FromRole, p.ToRole, p.Subject, p.Content, string(model.StatusUnread), ts, replyTo, ts)
	if err != nil {
		return nil, storage("insert message", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO status_history (message_id, status, timestamp, note) VALUES (?, ?, ?, ?)`,
		p.ID, string(model.StatusUnread), ts, "created")
	if err != nil {
		return nil, storage("insert history", err)
	}

	if err := appendChange(ctx, tx, model.ChangeCreate, ts, fmt.Sprintf("Message %s created by %s", p.ID, p.FromRole)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storage("commit", err)
	}

	return &model.Message{
		ID:           p.ID,
		FromRole:     p.FromRole,
		ToRole:       p.ToRole,
		Subject:      p.Subject,
		Content:      p.Content,
		Status:       model.StatusUnread,
		CreatedAt:    created,
		ReplyTo:      p.ReplyTo,
		LastActiveAt: created,
	}, nil
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status model.Status, note string) error {
	_, ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage("begin tx", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM messages WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("message %s: %w", id, maerr.ErrNotFound)
	}
	if err != nil {
		return storage("load status", err)
	}

	updates := []string{"status = ?", "last_active_at = ?"}
	args := []interface{}{string(status), ts}

	switch {
	case status == model.StatusUnread:
		// Administrative reset: the read marker is cleared so the next
		// non-recall transition stamps it again.
		updates = append(updates, "read_at = NULL")
	case status == model.StatusRecalled:
		updates = append(updates, "recalled_at = COALESCE(recalled_at, ?)")
		args = append(args, ts)
	default:
		// First transition away from unread stamps read_at exactly once.
		updates = append(updates, "read_at = COALESCE(read_at, ?)")
		args = append(args, ts)
	}
	args = append(args, id)

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE messages SET %s WHERE id = ?`, strings.Join(updates, ", ")), args...)
	if err != nil {
		return storage("update message", err)
	}

	if note == "" {
		note = fmt.Sprintf("Status changed to %s", status)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO status_history (message_id, status, timestamp, note) VALUES (?, ?, ?, ?)`,
		id, string(status), ts, note)
	if err != nil {
		return storage("insert history", err)
	}

	if err := appendChange(ctx, tx, model.ChangeStatusUpdate, ts, fmt.Sprintf("Message %s -> %s", id, status)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storage("commit", err)
	}
	return nil
}

func (s *SQLiteStore) RecallMessage(ctx context.Context, id, fromRole string) error {
	_, ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage("begin tx", err)
	}
	defer tx.Rollback()

	var sender, status string
	var readAt sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT from_role, status, read_at FROM messages WHERE id = ?`, id).
		Scan(&sender, &status, &readAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("message %s: %w", id, maerr.ErrNotFound)
	}
	if err != nil {
		return storage("load message", err)
	}

	if sender != fromRole {
		return fmt.Errorf("only %s may recall %s: %w", sender, id, maerr.ErrPermissionDenied)
	}
	if readAt.Valid || status != string(model.StatusUnread) {
		return fmt.Errorf("message %s: %w", id, maerr.ErrAlreadyRead)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE messages SET status = ?, recalled_at = ?, last_active_at = ? WHERE id = ?`,
		string(model.StatusRecalled), ts, ts, id)
	if err != nil {
		return storage("update message", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO status_history (message_id, status, timestamp, note) VALUES (?, ?, ?, ?)`,
		id, string(model.StatusRecalled), ts, "recalled by sender")
	if err != nil {
		return storage("insert history", err)
	}

	if err := appendChange(ctx, tx, model.ChangeStatusUpdate, ts, fmt.Sprintf("Message %s recalled", id)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storage("commit", err)
	}
	return nil
}

const messageColumns = `id, from_role, to_role, subject, content, status, created_at, read_at, recalled_at, reply_to, replies, last_active_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var m model.Message
	var status, createdAt, lastActiveAt string
	var readAt, recalledAt, replyTo, replies sql.NullString
	err := row.Scan(&m.ID, &m.FromRole, &m.ToRole, &m.Subject, &m.Content,
		&status, &createdAt, &readAt, &recalledAt, &replyTo, &replies, &lastActiveAt)
	if err != nil {
		return nil, err
	}
	m.Status = model.Status(status)
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.LastActiveAt, _ = time.Parse(time.RFC3339, lastActiveAt)
	if readAt.Valid {
		t, _ := time.Parse(time.RFC3339, readAt.String)
		m.ReadAt = &t
	}
	if recalledAt.Valid {
		t, _ := time.Parse(time.RFC3339, recalledAt.String)
		m.RecalledAt = &t
	}
	if replyTo.Valid {
		m.ReplyTo = replyTo.String
	}
	if replies.Valid && replies.String != "" {
		json.Unmarshal([]byte(replies.String), &m.Replies)
	}
	return &m, nil
}

func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message %s: %w", id, maerr.ErrNotFound)
	}
	if err != nil {
		return nil, storage("get message", err)
	}
	return m, nil
}

func (s *SQLiteStore) GetStatus(ctx context.Context, id string) (model.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM messages WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("message %s: %w", id, maerr.ErrNotFound)
	}
	if err != nil {
		return "", storage("get status", err)
	}
	return model.Status(status), nil
}

func (s *SQLiteStore) ListForRole(ctx context.Context, p ListParams) ([]model.Message, error) {
	var conditions []string
	var args []interface{}

	if p.IncludeSent {
		conditions = append(conditions, "(to_role = ? OR from_role = ?)")
		args = append(args, p.Role, p.Role)
	} else {
		conditions = append(conditions, "to_role = ?")
		args = append(args, p.Role)
	}

	// Status wins over ExcludedStatuses when both are supplied.
	if p.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(p.Status))
	} else if len(p.ExcludedStatuses) > 0 {
		placeholders := strings.TrimRight(strings.Repeat("?,", len(p.ExcludedStatuses)), ",")
		conditions = append(conditions, fmt.Sprintf("status NOT IN (%s)", placeholders))
		for _, st := range p.ExcludedStatuses {
			args = append(args, string(st))
		}
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY last_active_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage("list messages", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, storage("scan message", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) History(ctx context.Context, id string) ([]model.StatusChange, error) {
	if _, err := s.GetStatus(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, status, timestamp, note FROM status_history
		 WHERE message_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, storage("list history", err)
	}
	defer rows.Close()

	var history []model.StatusChange
	for rows.Next() {
		var h model.StatusChange
		var status, ts string
		var note sql.NullString
		if err := rows.Scan(&h.ID, &h.MessageID, &status, &ts, &note); err != nil {
			return nil, storage("scan history", err)
		}
		h.Status = model.Status(status)
		h.Timestamp, _ = time.Parse(time.RFC3339, ts)
		h.Note = note.String
		history = append(history, h)
	}
	return history, rows.Err()
}

func (s *SQLiteStore) DeleteByStatus(ctx context.Context, statuses ...model.Status) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	_, ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storage("begin tx", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(statuses)), ",")
	args := make([]interface{}, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM messages WHERE status IN (%s)`, placeholders), args...)
	if err != nil {
		return 0, storage("delete messages", err)
	}
	count, _ := res.RowsAffected()

	if count > 0 {
		if err := appendChange(ctx, tx, model.ChangeDelete, ts, fmt.Sprintf("Purged %d messages", count)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storage("commit", err)
	}
	return int(count), nil
}

func (s *SQLiteStore) PollChanges(ctx context.Context, lastSeenID int64) (bool, int64, error) {
	var newest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(id) FROM changes WHERE id > ?`, lastSeenID).Scan(&newest)
	if err != nil {
		return false, lastSeenID, storage("poll changes", err)
	}
	if !newest.Valid {
		return false, lastSeenID, nil
	}
	return true, newest.Int64, nil
}
