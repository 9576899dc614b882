package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bidhub/bidhub/internal/store"
)

// UserRepo implements store.UserRepository with sqlx.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo returns a new UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*store.User, error) {
	var u store.User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, username, COALESCE(avatar, '') AS avatar FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}
