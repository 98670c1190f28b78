package store

import (
	"context"

	"github.com/rcliao/agent-mail/internal/model"
)

// ExportedMessage bundles a message with its full audit trail for backup
// or inspection.
type ExportedMessage struct {
	Message model.Message        `json:"message"`
	History []model.StatusChange `json:"history,omitempty"`
}

func (s *SQLiteStore) Export(ctx context.Context) ([]ExportedMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages ORDER BY created_at, id`)
	if err != nil {
		return nil, storage("export messages", err)
	}
	defer rows.Close()

	var out []ExportedMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, storage("scan message", err)
		}
		out = append(out, ExportedMessage{Message: *m})
	}
	if err := rows.Err(); err != nil {
		return nil, storage("export messages", err)
	}

	for i := range out {
		history, err := s.History(ctx, out[i].Message.ID)
		if err != nil {
			return nil, err
		}
		out[i].History = history
	}
	return out, nil
}
