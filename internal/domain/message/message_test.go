package message

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
)

type mockRepo struct {
	created []*Message
	err     error
}

func (m *mockRepo) Create(_ context.Context, msg *Message) error {
	m.created = append(m.created, msg)
	return m.err
}

func (m *mockRepo) ListByRecord(_ context.Context, _, _ string) ([]Message, error) {
	return nil, nil
}

func TestChatter_Post(t *testing.T) {
	repo := &mockRepo{}
	c := NewChatter(repo)
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	err := c.Post(context.Background(), env.New("u1", "c1"), env.ModelSaleOrder, "so-1", "hello")
	require.NoError(t, err)
	require.Len(t, repo.created, 1)

	got := repo.created[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, env.ModelSaleOrder, got.Model)
	assert.Equal(t, "so-1", got.ResID)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, "u1", got.AuthorID)
	assert.Equal(t, fixed, got.CreatedAt)
}

func TestChatter_PostError(t *testing.T) {
	c := NewChatter(&mockRepo{err: errors.New("db down")})

	err := c.Post(context.Background(), env.New("u1", "c1"), env.ModelFSMOrder, "fo-1", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post message on fsm.order fo-1")
}
