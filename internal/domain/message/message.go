// Package message records human-readable audit notes on business records.
package message

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
)

// Message is a note posted on a record's chatter.
type Message struct {
	ID        string
	Model     string
	ResID     string
	Body      string
	AuthorID  string
	CreatedAt time.Time
}

// Repository defines persistence operations for messages.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	ListByRecord(ctx context.Context, model, resID string) ([]Message, error)
}

// Poster posts a formatted note referencing a record.
type Poster interface {
	Post(ctx context.Context, e env.Env, model, resID, body string) error
}

var _ Poster = (*Chatter)(nil)

// Chatter implements Poster on top of a Repository.
type Chatter struct {
	repo Repository
	now  func() time.Time
}

// NewChatter creates a Chatter backed by repo.
func NewChatter(repo Repository) *Chatter {
	return &Chatter{repo: repo, now: time.Now}
}

// Post stores body as a note on the record identified by model and resID,
// authored by the acting user of e.
func (c *Chatter) Post(ctx context.Context, e env.Env, model, resID, body string) error {
	m := &Message{
		ID:        uuid.New().String(),
		Model:     model,
		ResID:     resID,
		Body:      body,
		AuthorID:  e.UserID,
		CreatedAt: c.now().UTC(),
	}
	if err := c.repo.Create(ctx, m); err != nil {
		return errors.Wrapf(err, "post message on %s %s", model, resID)
	}
	return nil
}
