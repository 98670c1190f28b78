package store

import (
	"context"
	"database/sql"
)

// MailStats summarizes the mailbox contents.
type MailStats struct {
	TotalMessages int            `json:"total_messages"`
	ByStatus      map[string]int `json:"by_status"`
	ByRecipient   map[string]int `json:"by_recipient"`
	ChangeLogHead int64          `json:"change_log_head"`
	Sessions      int            `json:"sessions"`
}

func (s *SQLiteStore) Stats(ctx context.Context) (*MailStats, error) {
	stats := &MailStats{
		ByStatus:    make(map[string]int),
		ByRecipient: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM messages GROUP BY status`)
	if err != nil {
		return nil, storage("stats by status", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storage("scan stats", err)
		}
		stats.ByStatus[status] = n
		stats.TotalMessages += n
	}

	rrows, err := s.db.QueryContext(ctx, `SELECT to_role, COUNT(*) FROM messages GROUP BY to_role`)
	if err != nil {
		return nil, storage("stats by recipient", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		var role string
		var n int
		if err := rrows.Scan(&role, &n); err != nil {
			return nil, storage("scan stats", err)
		}
		stats.ByRecipient[role] = n
	}

	var head sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM changes`).Scan(&head); err != nil {
		return nil, storage("change log head", err)
	}
	stats.ChangeLogHead = head.Int64

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&stats.Sessions); err != nil {
		return nil, storage("session count", err)
	}

	return stats, nil
}
