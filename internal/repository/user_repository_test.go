package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ? LIMIT 1")).WithArgs("seller@campus.edu").
		WillReturnRows(sqlmock.NewRows([]string{"email", "full_name", "admission_number", "branch", "semester", "phone", "profile_picture"}).
			AddRow("seller@campus.edu", "Sam Seller", "21CS001", "CSE", "5", nil, nil))
	user, err := repo.FindByEmail(context.Background(), "seller@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, "Sam Seller", user.DisplayName())
	require.NotNil(t, user.Branch)
	assert.Equal(t, "CSE", *user.Branch)
	assert.Nil(t, user.Phone)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).WithArgs("ghost@campus.edu").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByEmail(context.Background(), "ghost@campus.edu")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).WithArgs("x@campus.edu").
		WillReturnError(errors.New("connection reset"))
	_, err = repo.FindByEmail(context.Background(), "x@campus.edu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find user by email")

	require.NoError(t, mock.ExpectationsWereMet())
}
