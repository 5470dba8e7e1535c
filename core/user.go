package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type User struct {
	ID       string
	Username string
	Email    string
}

// A UserDB stores user accounts. It returns an error wrapping ErrNotFound for unknown users.
type UserDB interface {
	GetAllUsers(ctx context.Context, limit, offset int) ([]*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByName(ctx context.Context, username string) (*User, error)
	InsertUser(ctx context.Context, u *User) error // sets u.ID
	LoginUser(ctx context.Context, username, password string) (*User, error)
	SetPassword(ctx context.Context, id, password string) error
}

var ErrEmptyPassword = errors.New("refusing to set empty password")

// InsertUser shadows UserDB.InsertUser.
func (c *CoreDB) InsertUser(ctx context.Context, username, email string) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, fmt.Errorf("%w: username can't be empty", ErrInvalid)
	}
	var u = &User{
		Username: username,
		Email:    strings.TrimSpace(email),
	}
	if err := c.UserDB.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetPassword shadows UserDB.SetPassword.
func (c *CoreDB) SetPassword(ctx context.Context, id, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	return c.UserDB.SetPassword(ctx, id, password)
}

// displayName returns the username, or the id if the user can't be loaded.
func (c *CoreDB) displayName(ctx context.Context, id string) string {
	if u, err := c.UserDB.GetUser(ctx, id); err == nil {
		return u.Username
	}
	return id
}
