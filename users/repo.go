package users

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("user with this email already exists")
)

// UserRepo stores accounts for the development server.
type UserRepo interface {
	// Insert assigns the next ID and stores the user, failing with
	// ErrEmailTaken for a duplicate email.
	Insert(user *User) error
	Update(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(id int64) (*User, error)
}
