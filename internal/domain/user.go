// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID string

type User struct {
	ID   UserID `json:"user_id"`
	Name string `json:"user_name"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(name string) (*User, error) {
	if len(name) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	id := UserID(uuid.NewString())
	return &User{ID: id, Name: name}, nil
}

// NewGuest mints a throwaway identity for connections that arrive without
// one. The auth service upstream is expected to replace this in practice.
func NewGuest() *User {
	return &User{ID: UserID(uuid.NewString()), Name: "guest"}
}

func (u *User) SetName(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Name = name
	return nil
}
