// Package users holds the credential source for the file server. The FTP
// front-end runs a single static account, but the source is an interface so
// the SFTP gateway shares it.
package users

import (
	"errors"
	"sync"
)

type User struct {
	Username string
	Password string
}

// Users finds accounts by username.
type Users interface {
	// Get returns the user or an error when the username is unknown.
	Get(username string) (*User, error)
}

var _ Users = (*LocalUsers)(nil)

// LocalUsers is an in-memory credential store.
type LocalUsers struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewLocalUsers() *LocalUsers {
	return &LocalUsers{users: make(map[string]*User)}
}

func (u *LocalUsers) Get(username string) (*User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.users[username]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (u *LocalUsers) Add(username, password string) *User {
	u.mu.Lock()
	defer u.mu.Unlock()
	user := &User{Username: username, Password: password}
	u.users[username] = user
	return user
}
