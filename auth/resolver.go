package auth

import (
	"context"
	"dwilive/domain"
	"dwilive/errors"
	"dwilive/repositories"
	"fmt"
	"net/http"
	"strings"
)

const (
	bearerPrefix = "Bearer "
	tokenQuery   = "token"
)

// IdentityResolver turns the credential of a request into a known user.
// It runs once per connection, before the websocket upgrade.
type IdentityResolver struct {
	tokens *TokenManager
	users  repositories.IUserRepository
}

func NewIdentityResolver(tokens *TokenManager, users repositories.IUserRepository) *IdentityResolver {
	return &IdentityResolver{tokens: tokens, users: users}
}

// Resolve accepts "Authorization: Bearer <token>" or a raw "?token=" query
// parameter for clients that cannot set headers. Every failure wraps
// ErrAuthentication.
func (i *IdentityResolver) Resolve(ctx context.Context, r *http.Request) (domain.User, error) {
	token := ExtractToken(r)
	if token == "" {
		return domain.User{}, errors.ErrMissingToken
	}
	claims, err := i.tokens.ValidateToken(token)
	if err != nil {
		return domain.User{}, err
	}
	userID, err := domain.ParseUserID(claims.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", errors.ErrInvalidToken, err)
	}
	user, err := i.users.GetByID(ctx, userID)
	if errors.Is(err, errors.ErrUserNotFound) {
		return domain.User{}, fmt.Errorf("%w: %s", errors.ErrUnknownSubject, userID)
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, bearerPrefix); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get(tokenQuery))
}
