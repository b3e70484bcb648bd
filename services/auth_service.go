package services

import (
	"context"
	"dwilive/auth"
	"dwilive/domain/event"
	"dwilive/errors"
	"dwilive/repositories"
	"fmt"
	"log/slog"
)

type IAuthService interface {
	Login(ctx context.Context, req auth.LoginRequest) (AuthResult, error)
	Register(ctx context.Context, req auth.RegisterRequest) (AuthResult, error)
}

// AuthResult is what a client needs to open a socket: a token and who it belongs to.
type AuthResult struct {
	Token string        `json:"token"`
	User  event.UserDTO `json:"user"`
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
	log            *slog.Logger
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenManager, log *slog.Logger) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens, log: log}
}

func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (AuthResult, error) {
	// Business rules are checked before any expensive cryptographic operation.
	if err := auth.ValidateRegister(req); err != nil {
		return AuthResult{}, err
	}

	// Hashing stays in the service so the repository never sees a plain password.
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hashing failed: %w", err)
	}

	// Propagates ErrUserAlreadyExists if the username is taken
	user, err := s.userRepository.Create(ctx, req.Username, hashedPassword, req.DisplayName)
	if err != nil {
		return AuthResult{}, err
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	s.log.Info("User registered", "user_id", user.ID)
	return AuthResult{Token: token, User: event.ToUserDTO(user)}, nil
}

func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (AuthResult, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return AuthResult{}, err
	}

	// Generic error to prevent user enumeration attacks
	user, err := s.userRepository.GetByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, errors.ErrUserNotFound) {
			s.log.Error("Login lookup failed", "error", err)
		}
		return AuthResult{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return AuthResult{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, User: event.ToUserDTO(user)}, nil
}
