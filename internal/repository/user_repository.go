package repository

import (
	"context"
	"time"

	"github.com/symptomcheck/symptom-service/internal/domain"
)

// UserRepository defines persistence access for accounts. Email uniqueness
// is enforced by the store itself so concurrent registrations cannot both win.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type userRepository struct {
	db      DBTX
	timeout time.Duration
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX, timeout time.Duration) UserRepository {
	return &userRepository{db: db, timeout: timeout}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, password_hash, full_name, is_active)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	user.Email = NormalizeEmail(user.Email)
	err := r.db.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.IsActive,
	).Scan(&user.ID, &user.CreatedAt)
	return mapStoreError("create user", err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, email, password_hash, full_name, is_active, created_at
        FROM users WHERE id=$1`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var user domain.User
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.IsActive,
		&user.CreatedAt,
	); err != nil {
		return nil, mapStoreError("get user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, email, password_hash, full_name, is_active, created_at
        FROM users WHERE lower(email)=$1`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var user domain.User
	if err := r.db.QueryRow(ctx, query, NormalizeEmail(email)).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.IsActive,
		&user.CreatedAt,
	); err != nil {
		return nil, mapStoreError("get user by email", err)
	}
	return &user, nil
}

func (r *userRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE users SET is_active=$1 WHERE id=$2`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, query, active, id)
	if err != nil {
		return mapStoreError("set user active", err)
	}
	if cmd.RowsAffected() == 0 {
		return mapStoreError("set user active", domain.ErrNotFound)
	}
	return nil
}
