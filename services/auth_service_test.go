package services

import (
	"context"
	"dwilive/auth"
	"dwilive/domain"
	"dwilive/errors"
	"dwilive/mocks"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newAuthService(t *testing.T) (*AuthService, *mocks.MockIUserRepository, *auth.TokenManager) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("test-secret", 24*time.Hour)
	return NewAuthService(mockRepo, tokens, logs.GetLoggerFromLevel(slog.LevelDebug)), mockRepo, tokens
}

func TestAuthService_Register(t *testing.T) {
	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		svc, mockRepo, tokens := newAuthService(t)
		password := "ComplexPass123"
		stored := domain.User{ID: domain.NewUserID(), Username: "alice", CreatedAt: time.Now()}

		// Expect Create to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			Create(gomock.Any(), "alice", gomock.Not(password), "Alice").
			DoAndReturn(func(_ context.Context, _ string, hash string, _ string) (domain.User, error) {
				match, err := auth.ComparePassword(password, hash)
				req.NoError(err)
				req.True(match)
				return stored, nil
			}).
			Times(1)

		res, err := svc.Register(t.Context(), auth.RegisterRequest{Username: "alice", Password: password, DisplayName: "Alice"})

		req.NoError(err)
		req.Equal(stored.ID.String(), res.User.ID)
		claims, err := tokens.ValidateToken(res.Token)
		req.NoError(err)
		req.Equal(stored.ID.String(), claims.Subject)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		svc, mockRepo, _ := newAuthService(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		res, err := svc.Register(t.Context(), auth.RegisterRequest{Username: "alice", Password: "alllowercase1"})

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(res.Token)
	})

	t.Run("should fail when the username is not a handle", func(t *testing.T) {
		req := require.New(t)
		svc, mockRepo, _ := newAuthService(t)
		mockRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Register(t.Context(), auth.RegisterRequest{Username: "al ice", Password: "ComplexPass123"})

		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)
		svc, mockRepo, _ := newAuthService(t)

		mockRepo.EXPECT().
			Create(gomock.Any(), "alice", gomock.Any(), "").
			Return(domain.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register(t.Context(), auth.RegisterRequest{Username: "alice", Password: "ComplexPass123"})

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	password := "Secret123456"
	hashedPassword, err := auth.HashPassword(password)
	require.NoError(t, err)
	storedUser := domain.User{ID: domain.NewUserID(), Username: "alice", PasswordHash: hashedPassword}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		svc, mockRepo, tokens := newAuthService(t)

		mockRepo.EXPECT().
			GetByUsername(gomock.Any(), "alice").
			Return(storedUser, nil).
			Times(1)

		res, err := svc.Login(t.Context(), auth.LoginRequest{Username: "alice", Password: password})

		req.NoError(err)
		claims, err := tokens.ValidateToken(res.Token)
		req.NoError(err)
		req.Equal(storedUser.ID.String(), claims.UserID)
		req.Equal("alice", res.User.Username)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		svc, mockRepo, _ := newAuthService(t)

		mockRepo.EXPECT().
			GetByUsername(gomock.Any(), "alice").
			Return(storedUser, nil).
			Times(1)

		res, err := svc.Login(t.Context(), auth.LoginRequest{Username: "alice", Password: "WrongPassword1"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
		req.Empty(res.Token)
	})

	t.Run("should not reveal that the user does not exist", func(t *testing.T) {
		req := require.New(t)
		svc, mockRepo, _ := newAuthService(t)

		mockRepo.EXPECT().
			GetByUsername(gomock.Any(), "ghost").
			Return(domain.User{}, errors.ErrUserNotFound).
			Times(1)

		_, err := svc.Login(t.Context(), auth.LoginRequest{Username: "ghost", Password: password})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
		req.NotErrorIs(err, errors.ErrUserNotFound)
	})

	t.Run("should reject an empty request before any lookup", func(t *testing.T) {
		req := require.New(t)
		svc, mockRepo, _ := newAuthService(t)
		mockRepo.EXPECT().GetByUsername(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Login(t.Context(), auth.LoginRequest{})

		req.ErrorIs(err, errors.ErrValidation)
	})
}
