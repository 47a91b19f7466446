package characters

import (
	"context"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestCatalog(t *testing.T, name string) *Catalog {
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
	if err := db.AutoMigrate(&Character{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	catalog, err := NewCatalog(CatalogConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return catalog
}

func TestSeedPopulatesEmptyCatalogInInsertionOrder(t *testing.T) {
	catalog := newTestCatalog(t, "characters_seed")
	ctx := context.Background()

	if err := catalog.Seed(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, err := catalog.All(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 canonical characters, got %d", len(all))
	}
	if all[0].Name != "Rick Sanchez (C-137)" {
		t.Fatalf("unexpected first character: %s", all[0].Name)
	}
	if all[3].Name != "Rick Prime" {
		t.Fatalf("unexpected last character: %s", all[3].Name)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	catalog := newTestCatalog(t, "characters_idempotent")
	ctx := context.Background()

	if err := catalog.Seed(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := catalog.Seed(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, err := catalog.All(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected seeding to run once, got %d characters", len(all))
	}
}

func TestGetReturnsNilOnUnknownID(t *testing.T) {
	catalog := newTestCatalog(t, "characters_missing")
	found, err := catalog.Get(context.Background(), 999)
	if err != nil {
		t.Fatalf("expected absent value without error, got %v", err)
	}
	if found != nil {
		t.Fatalf("expected nil character, got %+v", found)
	}
}

func TestSeededCharactersCarryEmotionVocabulary(t *testing.T) {
	catalog := newTestCatalog(t, "characters_emotions")
	ctx := context.Background()

	if err := catalog.Seed(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rick, err := catalog.Get(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rick == nil {
		t.Fatalf("expected seeded character with id 1")
	}
	if len(rick.EmotionStates) == 0 || rick.EmotionStates[0] != "neutral" {
		t.Fatalf("expected emotion vocabulary starting with neutral, got %v", rick.EmotionStates)
	}
	if len(rick.Traits) != 5 {
		t.Fatalf("expected 5 traits, got %v", rick.Traits)
	}
}
