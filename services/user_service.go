package services

import (
	"context"
	"dwilive/domain"
	"dwilive/domain/event"
	"dwilive/errors"
	"dwilive/repositories"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

const searchLimit = 20

type IUserService interface {
	Me(ctx context.Context, id domain.UserID) (event.UserDTO, error)
	UpdateMe(ctx context.Context, id domain.UserID, req UpdateProfileRequest) (event.UserDTO, error)
	Search(ctx context.Context, viewer domain.UserID, query string) ([]event.UserDTO, error)
}

type UserService struct {
	users repositories.IUserRepository
}

func NewUserService(users repositories.IUserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Me(ctx context.Context, id domain.UserID) (event.UserDTO, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return event.UserDTO{}, err
	}
	return event.ToUserDTO(user), nil
}

// UpdateMe changes the display name and the avatar. An empty avatar clears it.
func (s *UserService) UpdateMe(ctx context.Context, id domain.UserID, req UpdateProfileRequest) (event.UserDTO, error) {
	if err := event.Validate(req); err != nil {
		return event.UserDTO{}, err
	}
	if req.AvatarURL != nil && strings.TrimSpace(*req.AvatarURL) != "" {
		u, err := url.Parse(strings.TrimSpace(*req.AvatarURL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return event.UserDTO{}, fmt.Errorf("%w: avatar must be an http(s) url", errors.ErrValidation)
		}
	}
	user, err := s.users.UpdateProfile(ctx, id, req.DisplayName, req.AvatarURL)
	if err != nil {
		return event.UserDTO{}, err
	}
	return event.ToUserDTO(user), nil
}

// Search matches usernames by prefix, the viewer excluded.
func (s *UserService) Search(ctx context.Context, viewer domain.UserID, query string) ([]event.UserDTO, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []event.UserDTO{}, nil
	}
	users, err := s.users.SearchByUsername(ctx, query, searchLimit+1)
	if err != nil {
		return nil, err
	}
	found := lo.FilterMap(users, func(u domain.User, _ int) (event.UserDTO, bool) {
		return event.ToUserDTO(u), u.ID != viewer
	})
	if len(found) > searchLimit {
		found = found[:searchLimit]
	}
	return found, nil
}
