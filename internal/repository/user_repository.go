package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-book-exchange/internal/models"
)

const userColumns = `email, full_name, admission_number, branch, semester, phone, profile_picture`

// UserRepository resolves users for display names and existence checks.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findUser(ctx, r.db, email)
}

func findUser(ctx context.Context, q queryer, email string) (*models.User, error) {
	var user models.User
	if err := sqlx.GetContext(ctx, q, &user, q.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`), email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}
