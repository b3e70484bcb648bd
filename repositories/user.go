//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"dwilive/domain"
	"dwilive/errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	Create(ctx context.Context, username, passwordHash, displayName string) (domain.User, error)
	GetByID(ctx context.Context, id domain.UserID) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetMany(ctx context.Context, ids []domain.UserID) (map[domain.UserID]domain.User, error)
	UpdateProfile(ctx context.Context, id domain.UserID, displayName, avatarURL *string) (domain.User, error)
	SearchByUsername(ctx context.Context, prefix string, limit int) ([]domain.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Keys:
//
//	user:id:{user_id}    -> user record
//	user:name:{username} -> user_id (unique handle index)
func userKey(id domain.UserID) []byte { return []byte("user:id:" + string(id)) }

func usernameKey(username string) []byte { return []byte("user:name:" + username) }

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Create persists a new user; the handle index and the record are
// written in the same transaction so a taken username never leaves a record behind.
func (u *UserRepository) Create(_ context.Context, username, passwordHash, displayName string) (domain.User, error) {
	now := time.Now().UTC()
	user := domain.User{
		ID:           domain.NewUserID(),
		Username:     NormalizeUsername(username),
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	data, err := encode(fromUser(user))
	if err != nil {
		return domain.User{}, err
	}
	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(usernameKey(user.Username)); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(usernameKey(user.Username), []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetByID(_ context.Context, id domain.UserID) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	return user, err
}

func (u *UserRepository) GetByUsername(_ context.Context, username string) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(NormalizeUsername(username)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, domain.UserID(id))
		return err
	})
	return user, err
}

// GetMany loads every known user among ids; unknown ids are skipped.
func (u *UserRepository) GetMany(_ context.Context, ids []domain.UserID) (map[domain.UserID]domain.User, error) {
	users := make(map[domain.UserID]domain.User, len(ids))
	err := u.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			user, err := getUser(txn, id)
			if errors.Is(err, errors.ErrUserNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			users[id] = user
		}
		return nil
	})
	return users, err
}

// UpdateProfile changes the optional profile fields; nil leaves a field untouched.
func (u *UserRepository) UpdateProfile(_ context.Context, id domain.UserID, displayName, avatarURL *string) (domain.User, error) {
	var user domain.User
	err := u.db.Update(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		if err != nil {
			return err
		}
		if displayName != nil {
			user.DisplayName = strings.TrimSpace(*displayName)
		}
		if avatarURL != nil {
			user.AvatarURL = strings.TrimSpace(*avatarURL)
		}
		user.UpdatedAt = time.Now().UTC()
		data, err := encode(fromUser(user))
		if err != nil {
			return err
		}
		return txn.Set(userKey(id), data)
	})
	return user, err
}

// SearchByUsername walks the handle index, which badger keeps sorted, so a
// prefix scan returns matches alphabetically.
func (u *UserRepository) SearchByUsername(_ context.Context, prefix string, limit int) ([]domain.User, error) {
	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		p := usernameKey(NormalizeUsername(prefix))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if limit > 0 && len(users) == limit {
				break
			}
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			user, err := getUser(txn, domain.UserID(id))
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return nil
	})
	return users, err
}

func getUser(txn *badger.Txn, id domain.UserID) (domain.User, error) {
	item, err := txn.Get(userKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%w: %s", errors.ErrUserNotFound, id)
	}
	if err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err = item.Value(func(val []byte) error {
		r, err := decode(val)
		if err != nil {
			return err
		}
		user = toUser(r)
		return nil
	})
	return user, err
}

func fromUser(user domain.User) fields {
	return fields{
		"id":            string(user.ID),
		"username":      user.Username,
		"display_name":  user.DisplayName,
		"avatar_url":    user.AvatarURL,
		"password_hash": user.PasswordHash,
		"created_at":    formatTime(user.CreatedAt),
		"updated_at":    formatTime(user.UpdatedAt),
	}
}

func toUser(r record) domain.User {
	return domain.User{
		ID:           domain.UserID(r.str("id")),
		Username:     r.str("username"),
		DisplayName:  r.str("display_name"),
		AvatarURL:    r.str("avatar_url"),
		PasswordHash: r.str("password_hash"),
		CreatedAt:    r.time("created_at"),
		UpdatedAt:    r.time("updated_at"),
	}
}
