package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("game: database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig describes the dependencies of the game state store and
// dialogue log.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service is the game state store and dialogue log.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the game service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// GetState returns the game state for the (user, character) pair, or nil when
// the pair has no record yet. Callers create states explicitly; there is no
// implicit creation here.
func (s *Service) GetState(ctx context.Context, userID, characterID uint) (*State, error) {
	var state State
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID).
		Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// GetStateByID returns the game state for the id, or nil when unknown.
func (s *Service) GetStateByID(ctx context.Context, id uint) (*State, error) {
	var state State
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// CreateState inserts the game state for a (user, character) pair, applying
// defaults for omitted fields. A second creation for the same pair fails with
// ErrStateExists; the composite unique index guarantees singularity under
// concurrent creation.
func (s *Service) CreateState(ctx context.Context, input NewState) (*State, error) {
	now := s.clock().UTC()
	state := State{
		UserID:              input.UserID,
		CharacterID:         input.CharacterID,
		AffectionLevel:      0,
		RelationshipStatus:  defaultRelationshipStatus,
		ConversationCount:   0,
		CurrentEmotion:      defaultEmotion,
		UnlockedBackstories: []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if input.AffectionLevel != nil {
		state.AffectionLevel = *input.AffectionLevel
	}
	if input.RelationshipStatus != nil {
		state.RelationshipStatus = *input.RelationshipStatus
	}
	if input.ConversationCount != nil {
		state.ConversationCount = *input.ConversationCount
	}
	if input.CurrentEmotion != nil {
		state.CurrentEmotion = *input.CurrentEmotion
	}
	if len(input.Settings) > 0 {
		state.Settings = input.Settings
	}

	if err := s.db.WithContext(ctx).Create(&state).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %d, character %d", ErrStateExists, input.UserID, input.CharacterID)
		}
		return nil, err
	}
	return &state, nil
}

// UpdateState merges the partial fields into the game state and stamps
// updated_at. Array and blob fields replace the stored value wholesale; a
// caller that wants set semantics reads, modifies, and writes back.
func (s *Service) UpdateState(ctx context.Context, id uint, update StateUpdate) (*State, error) {
	changes := map[string]interface{}{}
	if update.AffectionLevel != nil {
		changes["affection_level"] = *update.AffectionLevel
	}
	if update.RelationshipStatus != nil {
		changes["relationship_status"] = *update.RelationshipStatus
	}
	if update.ConversationCount != nil {
		changes["conversation_count"] = *update.ConversationCount
	}
	if update.CurrentEmotion != nil {
		changes["current_emotion"] = *update.CurrentEmotion
	}
	if update.UnlockedBackstories != nil {
		changes["unlocked_backstories"] = datatypes.NewJSONSlice(*update.UnlockedBackstories)
	}
	if update.Settings != nil {
		changes["settings"] = update.Settings
	}
	if update.LastSavedAt != nil {
		changes["last_saved_at"] = *update.LastSavedAt
	}
	changes["updated_at"] = s.clock().UTC()

	var state State
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&state).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrNotFound, id)
			}
			return err
		}
		if err := tx.Model(&state).Updates(changes).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Take(&state).Error
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ListStates returns every game state for a user, most recently updated first.
func (s *Service) ListStates(ctx context.Context, userID uint) ([]State, error) {
	var states []State
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

// AppendDialogue appends an immutable turn to the log. The timestamp comes
// from the service clock, not the caller; AffectionChange defaults to zero.
func (s *Service) AppendDialogue(ctx context.Context, input NewDialogue) (*Dialogue, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	dialogue := Dialogue{
		GameStateID:      input.GameStateID,
		Speaker:          input.Speaker,
		Message:          input.Message,
		MessageType:      input.MessageType,
		AffectionChange:  input.AffectionChange,
		EmotionTriggered: input.EmotionTriggered,
		BackstoryID:      input.BackstoryID,
		Timestamp:        s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&dialogue).Error; err != nil {
		return nil, err
	}
	return &dialogue, nil
}

// RecentDialogues returns the most recent limit turns in chronological order:
// the query walks the log backwards by (timestamp, id), truncates, and the
// result is reversed before returning. A limit of zero or less falls back to
// DefaultDialogueLimit.
func (s *Service) RecentDialogues(ctx context.Context, gameStateID uint, limit int) ([]Dialogue, error) {
	if limit <= 0 {
		limit = DefaultDialogueLimit
	}
	var dialogues []Dialogue
	if err := s.db.WithContext(ctx).
		Where("game_state_id = ?", gameStateID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&dialogues).Error; err != nil {
		return nil, err
	}
	slices.Reverse(dialogues)
	return dialogues, nil
}

// CountDialogues returns the total number of turns for a game state.
func (s *Service) CountDialogues(ctx context.Context, gameStateID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&Dialogue{}).
		Where("game_state_id = ?", gameStateID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UnlockBackstory adds the backstory id to the state's unlocked set and
// stamps updated_at. Unlocking an already-unlocked backstory is a no-op that
// returns the unchanged record.
func (s *Service) UnlockBackstory(ctx context.Context, gameStateID uint, backstoryID string) (*State, error) {
	var state State
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", gameStateID).Take(&state).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrNotFound, gameStateID)
			}
			return err
		}
		if slices.Contains(state.UnlockedBackstories, backstoryID) {
			return nil
		}
		unlocked := append(slices.Clone([]string(state.UnlockedBackstories)), backstoryID)
		updatedAt := s.clock().UTC()
		if err := tx.Model(&state).Updates(map[string]interface{}{
			"unlocked_backstories": datatypes.NewJSONSlice(unlocked),
			"updated_at":           updatedAt,
		}).Error; err != nil {
			return err
		}
		state.UnlockedBackstories = datatypes.NewJSONSlice(unlocked)
		state.UpdatedAt = updatedAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("backstory unlocked",
		zap.Uint("game_state_id", gameStateID),
		zap.String("backstory_id", backstoryID))
	return &state, nil
}

// UnlockedBackstories returns the unlocked set for an existing game state.
// A state with no unlocks yields an empty slice, never an error.
func (s *Service) UnlockedBackstories(ctx context.Context, gameStateID uint) ([]string, error) {
	state, err := s.GetStateByID(ctx, gameStateID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, gameStateID)
	}
	if state.UnlockedBackstories == nil {
		return []string{}, nil
	}
	return state.UnlockedBackstories, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
