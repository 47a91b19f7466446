package users

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/plumbus-games/portal-hearts/backend/internal/settings"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, name string) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: db, Clock: func() time.Time {
		return time.Unix(1700000000, 0)
	}})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func TestCreateUserThenGetByUsername(t *testing.T) {
	service := newTestService(t, "users_create")
	ctx := context.Background()

	created, err := service.CreateUser(ctx, NewUser{Username: "MortySmith99", Password: "aw-geez"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	found, err := service.GetUserByUsername(ctx, "MortySmith99")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found == nil || found.Username != "MortySmith99" {
		t.Fatalf("expected stored user, got %+v", found)
	}

	var stored settings.Settings
	if err := json.Unmarshal(found.GlobalSettings, &stored); err != nil {
		t.Fatalf("failed to decode default settings blob: %v", err)
	}
	if stored != settings.Defaults() {
		t.Fatalf("expected default global settings, got %+v", stored)
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	service := newTestService(t, "users_duplicate")
	ctx := context.Background()

	if _, err := service.CreateUser(ctx, NewUser{Username: "rick-c137", Password: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := service.CreateUser(ctx, NewUser{Username: "rick-c137", Password: "y"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestGetUserByUsernameIsCaseSensitive(t *testing.T) {
	service := newTestService(t, "users_case")
	ctx := context.Background()

	if _, err := service.CreateUser(ctx, NewUser{Username: "Summer", Password: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found, err := service.GetUserByUsername(ctx, "summer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != nil {
		t.Fatalf("expected case-sensitive miss, got %+v", found)
	}
}

func TestGetUserByUsernameReturnsNilOnMiss(t *testing.T) {
	service := newTestService(t, "users_miss")
	found, err := service.GetUserByUsername(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("expected absent value without error, got %v", err)
	}
	if found != nil {
		t.Fatalf("expected nil user, got %+v", found)
	}
}

func TestValidateUsernameBounds(t *testing.T) {
	cases := []struct {
		username string
		valid    bool
	}{
		{"ab", true},
		{"a", false},
		{"MortySmith99", true},
		{"with-hyphen_and_underscore", false}, // 26 chars, over the limit
		{"bad space", false},
		{"emoji🛸", false},
		{"twenty-characters-xx", true},
	}
	for _, testCase := range cases {
		err := ValidateUsername(testCase.username)
		if testCase.valid && err != nil {
			t.Fatalf("expected %q to validate, got %v", testCase.username, err)
		}
		if !testCase.valid && !errors.Is(err, ErrInvalidUsername) {
			t.Fatalf("expected %q to fail with ErrInvalidUsername, got %v", testCase.username, err)
		}
	}
}

func TestUpdateUserMergesPartialFields(t *testing.T) {
	service := newTestService(t, "users_update")
	ctx := context.Background()

	created, err := service.CreateUser(ctx, NewUser{Username: "birdperson", Password: "x", Email: "bp@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	picture := "/avatars/bp.png"
	updated, err := service.UpdateUser(ctx, created.ID, Update{ProfilePicture: &picture})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ProfilePicture != picture {
		t.Fatalf("expected profile picture to update, got %q", updated.ProfilePicture)
	}
	if updated.Email != "bp@example.com" {
		t.Fatalf("expected unspecified email to survive, got %q", updated.Email)
	}
}

func TestUpdateUserFailsOnUnknownID(t *testing.T) {
	service := newTestService(t, "users_update_missing")
	email := "nope@example.com"
	_, err := service.UpdateUser(context.Background(), 4242, Update{Email: &email})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateGlobalSettingsPatchesStoredBlob(t *testing.T) {
	service := newTestService(t, "users_settings")
	ctx := context.Background()

	created, err := service.CreateUser(ctx, NewUser{Username: "squanchy", Password: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, first, err := service.UpdateGlobalSettings(ctx, created.ID, []byte(`{"musicVolume":80}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.MusicVolume != 80 {
		t.Fatalf("expected music volume 80, got %d", first.MusicVolume)
	}

	_, second, err := service.UpdateGlobalSettings(ctx, created.ID, []byte(`{"nsfwContent":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.MusicVolume != 80 {
		t.Fatalf("expected earlier patch to survive, got volume %d", second.MusicVolume)
	}
	if !second.NsfwContent {
		t.Fatalf("expected nsfw flag to be set")
	}
}

func TestUpdateGlobalSettingsFailsOnUnknownID(t *testing.T) {
	service := newTestService(t, "users_settings_missing")
	_, _, err := service.UpdateGlobalSettings(context.Background(), 99, []byte(`{"musicVolume":10}`))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthenticateCreatesAccountOnFirstSignIn(t *testing.T) {
	service := newTestService(t, "users_auth")
	ctx := context.Background()

	first, err := service.Authenticate(ctx, "jessica", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := service.Authenticate(ctx, "jessica", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != again.ID {
		t.Fatalf("expected the same account, got %d and %d", first.ID, again.ID)
	}

	if _, err := service.Authenticate(ctx, "jessica", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
