package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/stackmartapp/stackmart/internal/auth"
	"github.com/stackmartapp/stackmart/internal/db"
	"github.com/stackmartapp/stackmart/internal/logging"
	"github.com/stackmartapp/stackmart/internal/models"
)

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type tokenIssuer interface {
	Issue(userID uuid.UUID, isAdmin bool) (string, error)
	Verify(raw string) (uuid.UUID, bool, error)
}

// AuthService handles registration, login, and token verification.
type AuthService struct {
	users  userStore
	tokens tokenIssuer
	logger *slog.Logger
}

func NewAuthService(users userStore, tokens tokenIssuer, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

type Credentials struct {
	Name     string
	Email    string
	Password string
}

// Session is a logged-in user plus their bearer token.
type Session struct {
	User  *models.User
	Token string
}

// Register creates an account and logs it in.
func (s *AuthService) Register(ctx context.Context, creds Credentials) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if !emailPattern.MatchString(email) {
		return nil, &InvalidInputError{Field: "email", Reason: "must be a valid email address"}
	}
	if len(creds.Password) < 8 {
		return nil, &InvalidInputError{Field: "password", Reason: "must be at least 8 characters"}
	}
	name := strings.TrimSpace(creds.Name)
	if name == "" {
		return nil, &InvalidInputError{Field: "name", Reason: "is required"}
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			return nil, &InvalidInputError{Field: "email", Reason: "is already registered"}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logging.FromContext(ctx, s.logger).Info("user registered", "user_id", user.ID)
	return s.session(user)
}

// Login verifies credentials and issues a token. Wrong email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrUnauthorized
	}

	logging.FromContext(ctx, s.logger).Info("user logged in", "user_id", user.ID)
	return s.session(user)
}

// Me returns the user a verified token belongs to.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// VerifyToken resolves a bearer token to an identity.
func (s *AuthService) VerifyToken(raw string) (Identity, error) {
	userID, isAdmin, err := s.tokens.Verify(raw)
	if err != nil {
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: &userID, IsAdmin: isAdmin}, nil
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}
