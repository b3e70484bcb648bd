// Package domain contains core concepts of the chat system.
// This file defines the User entity; users are owned by the persistence layer
// and are read-only from the realtime core.
package domain

import "time"

type User struct {
	ID           UserID
	Username     string
	DisplayName  string
	AvatarURL    string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Name is what other participants see: the display name, or the handle when unset.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
