package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plumbus-games/portal-hearts/backend/internal/settings"
	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("users: database handle is required")

// ServiceConfig describes the dependencies of the account store.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service is the user account store.
type Service struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewService constructs the account store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, clock: clock}, nil
}

// GetUser returns the account for the id, or nil when no such account exists.
func (s *Service) GetUser(ctx context.Context, id uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername performs a case-sensitive exact match and returns nil when
// no account carries the username.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// The column collation may compare case-insensitively; the contract is
	// exact match.
	if user.Username != username {
		return nil, nil
	}
	return &user, nil
}

// CreateUser inserts a new account with default global settings. Username
// uniqueness is enforced here, backed by the unique index.
func (s *Service) CreateUser(ctx context.Context, input NewUser) (*User, error) {
	if err := ValidateUsername(input.Username); err != nil {
		return nil, err
	}

	defaults, err := json.Marshal(settings.Defaults())
	if err != nil {
		return nil, err
	}

	user := User{
		Username:       input.Username,
		Password:       input.Password,
		Email:          input.Email,
		GlobalSettings: defaults,
		CreatedAt:      s.clock().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, input.Username)
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate resolves the account for a sign-in attempt, creating it when
// the username has never been seen. A mismatched password on an existing
// account fails with ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	existing, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		created, err := s.CreateUser(ctx, NewUser{Username: username, Password: password})
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, ErrUsernameTaken) {
			return nil, err
		}
		// Lost a creation race; fall through to the stored record.
		existing, err = s.GetUserByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrNotFound
		}
	}
	if existing.Password != password {
		return nil, ErrInvalidCredentials
	}
	return existing, nil
}

// UpdateUser merges the supplied partial fields into the account. Unspecified
// fields keep their stored value.
func (s *Service) UpdateUser(ctx context.Context, id uint, update Update) (*User, error) {
	changes := map[string]interface{}{}
	if update.Password != nil {
		changes["password"] = *update.Password
	}
	if update.Email != nil {
		changes["email"] = *update.Email
	}
	if update.ProfilePicture != nil {
		changes["profile_picture"] = *update.ProfilePicture
	}

	var user User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrNotFound, id)
			}
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(changes).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Take(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateGlobalSettings patches the account's global settings blob and returns
// the account alongside the resolved settings. The patch is partial; stored
// fields it does not mention survive.
func (s *Service) UpdateGlobalSettings(ctx context.Context, id uint, patch []byte) (*User, settings.Settings, error) {
	var user User
	var resolved settings.Settings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrNotFound, id)
			}
			return err
		}

		merged, encoded, err := settings.Apply(user.GlobalSettings, patch)
		if err != nil {
			return err
		}

		if err := tx.Model(&user).Update("global_settings", encoded).Error; err != nil {
			return err
		}
		user.GlobalSettings = encoded
		resolved = merged
		return nil
	})
	if err != nil {
		return nil, settings.Settings{}, err
	}
	return &user, resolved, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
