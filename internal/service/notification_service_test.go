package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-book-exchange/internal/models"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
)

type memoryNotes struct {
	items []models.Notification
}

func (m *memoryNotes) ListByEmail(_ context.Context, email string) ([]models.Notification, error) {
	var out []models.Notification
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].UserEmail == email {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memoryNotes) Delete(_ context.Context, id int64, email string) error {
	for i, n := range m.items {
		if n.ID == id && n.UserEmail == email {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func TestNotificationServiceScopesToRecipient(t *testing.T) {
	store := &memoryNotes{items: []models.Notification{
		{ID: 1, UserEmail: buyer.Email, Message: "first"},
		{ID: 2, UserEmail: seller.Email, Message: "other"},
		{ID: 3, UserEmail: buyer.Email, Message: "second"},
	}}
	svc := NewNotificationService(store, nil)

	list, err := svc.List(context.Background(), buyer.Email)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Message)

	empty, err := svc.List(context.Background(), other.Email)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.List(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	err = svc.Delete(context.Background(), 2, buyer.Email)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, svc.Delete(context.Background(), 1, buyer.Email))
	assert.Len(t, store.items, 2)
}
