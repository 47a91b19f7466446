package users

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

const (
	minUsernameLength = 2
	maxUsernameLength = 20
)

var (
	// ErrNotFound indicates the referenced user id does not exist.
	ErrNotFound = errors.New("users: user not found")
	// ErrUsernameTaken indicates the username uniqueness invariant was violated.
	ErrUsernameTaken = errors.New("users: username already taken")
	// ErrInvalidUsername indicates the username is outside the length or character constraints.
	ErrInvalidUsername = errors.New("users: invalid username")
	// ErrInvalidCredentials indicates the supplied password does not match the account.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
)

// User is the account identity record. GlobalSettings holds the user's
// settings blob as JSON; it applies to every character unless a game state
// carries its own override.
type User struct {
	ID             uint           `gorm:"column:id;primaryKey"`
	Username       string         `gorm:"column:username;uniqueIndex;size:20;not null"`
	Password       string         `gorm:"column:password;size:190;not null"`
	Email          string         `gorm:"column:email;size:320"`
	ProfilePicture string         `gorm:"column:profile_picture;type:text"`
	GlobalSettings datatypes.JSON `gorm:"column:global_settings"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// ValidateUsername enforces the 2-20 character alphanumeric/hyphen/underscore rule.
func ValidateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return fmt.Errorf("%w: must be between %d and %d characters", ErrInvalidUsername, minUsernameLength, maxUsernameLength)
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("%w: character %q is not allowed", ErrInvalidUsername, r)
		}
	}
	return nil
}

// NewUser describes the input for account creation.
type NewUser struct {
	Username string
	Password string
	Email    string
}

// Update carries the partial fields of an account mutation. Nil fields are
// left untouched.
type Update struct {
	Password       *string
	Email          *string
	ProfilePicture *string
}
