package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEmailTaken = errors.New("email already registered")

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Create(ctx context.Context, user *User) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		user.ID, strings.ToLower(user.Email), user.PasswordHash, user.Name, user.IsAdmin,
	).Scan(&user.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", user.Email, ErrEmailTaken)
	}
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, name, is_admin, created_at FROM users WHERE email = $1`,
		strings.ToLower(email))
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return user, err
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, name, is_admin, created_at FROM users WHERE id = $1`,
		userID)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return user, err
}

func (s *UserStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.IsAdmin, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
