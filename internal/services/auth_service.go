package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/auth"
	"tally/internal/core"
	"tally/internal/storage"
)

// AuthService handles registration and login. Passwords are stored as bcrypt
// hashes; sessions are stateless JWTs.
type AuthService struct {
	storage *storage.SQLiteRepository
	tokens  *auth.JWTManager
}

func NewAuthService(storage *storage.SQLiteRepository, tokens *auth.JWTManager) *AuthService {
	return &AuthService{
		storage: storage,
		tokens:  tokens,
	}
}

// Register creates a new account and returns the user with a fresh token.
func (s *AuthService) Register(ctx context.Context, email, displayName, password string) (*core.User, string, error) {
	if email == "" {
		return nil, "", fmt.Errorf("%w: missing email", core.ErrValidation)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, "", err
	}

	if existing, err := s.storage.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, "", auth.ErrEmailExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user := &core.User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return nil, "", auth.ErrEmailExists
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, "", err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)

	return user, token, nil
}

// Login verifies the credentials and returns the user with a fresh token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*core.User, string, error) {
	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, "", err
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID)

	return user, token, nil
}

// Me returns the account behind a validated token's user id.
func (s *AuthService) Me(ctx context.Context, userID string) (*core.User, error) {
	return s.storage.GetUserByID(ctx, userID)
}
