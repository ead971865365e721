package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/fieldservice-sale/internal/domain/message"
)

const (
	insertMessageSQL = `INSERT INTO messages (id, model, res_id, body, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listMessagesSQL = `SELECT id, model, res_id, body, author_id, created_at
		FROM messages WHERE model = $1 AND res_id = $2 ORDER BY pos`
)

var _ message.Repository = (*MessageRepository)(nil)

// MessageRepository implements message.Repository backed by PostgreSQL.
type MessageRepository struct {
	db *DB
}

// Create persists m.
func (r *MessageRepository) Create(ctx context.Context, m *message.Message) error {
	_, err := r.db.conn(ctx).Exec(ctx, insertMessageSQL, m.ID, m.Model, m.ResID, m.Body, m.AuthorID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating message on %s %q: %w", m.Model, m.ResID, err)
	}
	return nil
}

// ListByRecord returns the messages posted on a record, oldest first.
func (r *MessageRepository) ListByRecord(ctx context.Context, model, resID string) ([]message.Message, error) {
	rows, err := r.db.conn(ctx).Query(ctx, listMessagesSQL, model, resID)
	if err != nil {
		return nil, fmt.Errorf("listing messages of %s %q: %w", model, resID, err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[message.Message])
}
