package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"timetrack-backend/internal/auth"
	"timetrack-backend/internal/common"
	"timetrack-backend/internal/domain"
	"timetrack-backend/internal/storage"
)

// RegisterRequest holds the data needed to create a new account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest holds the credentials for authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserService defines account registration and authentication.
type UserService interface {
	// Register creates a new user. Fails with common.ErrValidation on
	// missing fields and common.ErrConflict on a duplicate email.
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)

	// Authenticate checks credentials and returns the matching user, or
	// common.ErrUnauthorized.
	Authenticate(ctx context.Context, req LoginRequest) (*domain.User, error)
}

type userService struct {
	store storage.Store
}

func NewUserService(store storage.Store) UserService {
	return &userService{store: store}
}

func (s *userService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		ID:       uuid.NewString(),
		Email:    req.Email,
		Password: hash,
	}

	// The duplicate check runs inside Update so registration is atomic
	// against a concurrent register with the same email.
	err = s.store.Update(ctx, func(doc *domain.Document) error {
		if doc.FindUserByEmail(req.Email) != nil {
			return fmt.Errorf("%w: email already registered", common.ErrConflict)
		}
		doc.Users = append(doc.Users, user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, req LoginRequest) (*domain.User, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	user := doc.FindUserByEmail(req.Email)
	if user == nil || !auth.CheckPassword(user.Password, req.Password) {
		return nil, fmt.Errorf("%w: invalid email or password", common.ErrUnauthorized)
	}
	return user, nil
}
