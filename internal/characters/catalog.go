package characters

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("characters: database handle is required")

// CatalogConfig describes the dependencies of the character catalog.
type CatalogConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Catalog is the character store. The catalog is read-mostly: it is seeded
// once at startup and then only read for the lifetime of the process.
type Catalog struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCatalog constructs the character catalog.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{db: cfg.Database, logger: logger}, nil
}

// All returns the full catalog in insertion order.
func (c *Catalog) All(ctx context.Context) ([]Character, error) {
	var list []Character
	if err := c.db.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Get returns the character for the id, or nil when unknown.
func (c *Catalog) Get(ctx context.Context, id uint) (*Character, error) {
	var character Character
	err := c.db.WithContext(ctx).Where("id = ?", id).Take(&character).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &character, nil
}

// Create inserts a character into the catalog.
func (c *Catalog) Create(ctx context.Context, input NewCharacter) (*Character, error) {
	character := Character{
		Name:          input.Name,
		Description:   input.Description,
		Personality:   input.Personality,
		Sprite:        input.Sprite,
		Color:         input.Color,
		Traits:        input.Traits,
		EmotionStates: input.EmotionStates,
	}
	if err := c.db.WithContext(ctx).Create(&character).Error; err != nil {
		return nil, err
	}
	return &character, nil
}

// Seed inserts the canonical characters into an empty catalog. A non-empty
// catalog is left untouched, making startup seeding idempotent. Seeding
// failure must not take the process down: the caller logs the returned error
// and continues with whatever the store holds.
func (c *Catalog) Seed(ctx context.Context) error {
	var count int64
	if err := c.db.WithContext(ctx).Model(&Character{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		c.logger.Debug("character catalog already seeded", zap.Int64("count", count))
		return nil
	}

	for _, input := range canonicalCharacters() {
		if _, err := c.Create(ctx, input); err != nil {
			return err
		}
	}
	c.logger.Info("character catalog seeded", zap.Int("count", len(canonicalCharacters())))
	return nil
}
