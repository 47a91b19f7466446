package saves

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("saves: database handle is required")

// Slot is a named snapshot of a game state. SlotNumber is unique per user,
// not globally; saving to an occupied slot replaces its content. The
// denormalized columns exist so a save list can render without decoding the
// snapshot blob.
type Slot struct {
	ID                 uint           `gorm:"column:id;primaryKey"`
	UserID             uint           `gorm:"column:user_id;not null;uniqueIndex:idx_save_slots_user_slot,priority:1"`
	SlotNumber         int            `gorm:"column:slot_number;not null;uniqueIndex:idx_save_slots_user_slot,priority:2"`
	Snapshot           datatypes.JSON `gorm:"column:game_state_snapshot;not null"`
	DialogueCount      int            `gorm:"column:dialogue_count;not null;default:0"`
	CharacterName      string         `gorm:"column:character_name;size:190;not null"`
	AffectionLevel     int            `gorm:"column:affection_level;not null"`
	RelationshipStatus string         `gorm:"column:relationship_status;size:64;not null"`
	CreatedAt          time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Slot) TableName() string {
	return "save_slots"
}

// NewSlot describes the input for a save action.
type NewSlot struct {
	UserID             uint
	SlotNumber         int
	Snapshot           []byte
	DialogueCount      int
	CharacterName      string
	AffectionLevel     int
	RelationshipStatus string
}

// ServiceConfig describes the dependencies of the save slot store.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service is the save slot store.
type Service struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewService constructs the save slot store.
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

// List returns a user's save slots, most recently written first.
func (s *Service) List(ctx context.Context, userID uint) ([]Slot, error) {
	var slots []Slot
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

// Get returns the slot for (userID, slotNumber), or nil when the slot is empty.
func (s *Service) Get(ctx context.Context, userID uint, slotNumber int) (*Slot, error) {
	var slot Slot
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND slot_number = ?", userID, slotNumber).
		Take(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// Save writes the snapshot into the slot. Saving over an occupied slot number
// replaces its content; the race between two saves on the same slot is
// serialized by the store's unique index, not by this layer.
func (s *Service) Save(ctx context.Context, input NewSlot) (*Slot, error) {
	now := s.clock().UTC()
	slot := Slot{
		UserID:             input.UserID,
		SlotNumber:         input.SlotNumber,
		Snapshot:           input.Snapshot,
		DialogueCount:      input.DialogueCount,
		CharacterName:      input.CharacterName,
		AffectionLevel:     input.AffectionLevel,
		RelationshipStatus: input.RelationshipStatus,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "slot_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"game_state_snapshot",
			"dialogue_count",
			"character_name",
			"affection_level",
			"relationship_status",
			"updated_at",
		}),
	}).Create(&slot).Error
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, input.UserID, input.SlotNumber)
}

// Delete removes the slot. Deleting an empty slot is not an error.
func (s *Service) Delete(ctx context.Context, userID uint, slotNumber int) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND slot_number = ?", userID, slotNumber).
		Delete(&Slot{}).Error
}
