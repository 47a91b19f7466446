package game

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// Speaker identifies which side of the conversation produced a turn.
type Speaker string

const (
	SpeakerCharacter Speaker = "character"
	SpeakerPlayer    Speaker = "player"
)

// MessageType classifies how a dialogue turn was produced.
type MessageType string

const (
	MessageTypeChoice    MessageType = "choice"
	MessageTypeCustom    MessageType = "custom"
	MessageTypeCharacter MessageType = "character"
	MessageTypeBackstory MessageType = "backstory"
)

const (
	defaultRelationshipStatus = "stranger"
	defaultEmotion            = "neutral"

	// DefaultDialogueLimit bounds a history read when the caller does not
	// supply a limit.
	DefaultDialogueLimit = 50
)

var (
	// ErrNotFound indicates the referenced game state id does not exist.
	ErrNotFound = errors.New("game: game state not found")
	// ErrStateExists indicates a game state already exists for the (user, character) pair.
	ErrStateExists = errors.New("game: game state already exists for this user and character")
	// ErrInvalidSpeaker indicates a dialogue speaker outside the enum.
	ErrInvalidSpeaker = errors.New("game: invalid speaker")
	// ErrInvalidMessageType indicates a dialogue message type outside the enum.
	ErrInvalidMessageType = errors.New("game: invalid message type")
)

// State is the relationship-progress record for one (user, character) pair.
// At most one State exists per pair, backed by the composite unique index.
// The store does not clamp AffectionLevel or check CurrentEmotion against the
// character's vocabulary; both policies belong to the calling layer.
type State struct {
	ID                  uint                        `gorm:"column:id;primaryKey"`
	UserID              uint                        `gorm:"column:user_id;not null;uniqueIndex:idx_game_states_pair,priority:1"`
	CharacterID         uint                        `gorm:"column:character_id;not null;uniqueIndex:idx_game_states_pair,priority:2"`
	AffectionLevel      int                         `gorm:"column:affection_level;not null;default:0"`
	RelationshipStatus  string                      `gorm:"column:relationship_status;size:64;not null"`
	ConversationCount   int                         `gorm:"column:conversation_count;not null;default:0"`
	CurrentEmotion      string                      `gorm:"column:current_emotion;size:64;not null"`
	UnlockedBackstories datatypes.JSONSlice[string] `gorm:"column:unlocked_backstories"`
	Settings            datatypes.JSON              `gorm:"column:settings"`
	LastSavedAt         *time.Time                  `gorm:"column:last_saved_at"`
	CreatedAt           time.Time                   `gorm:"column:created_at;not null"`
	UpdatedAt           time.Time                   `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (State) TableName() string {
	return "game_states"
}

// Dialogue is one immutable conversation turn. Rows are append-only: no
// update or delete operation exists, and ordering is by the store-assigned
// timestamp with the row id as tie-break.
type Dialogue struct {
	ID               uint        `gorm:"column:id;primaryKey"`
	GameStateID      uint        `gorm:"column:game_state_id;not null;index:idx_dialogues_state_time,priority:1"`
	Speaker          Speaker     `gorm:"column:speaker;size:16;not null"`
	Message          string      `gorm:"column:message;type:text;not null"`
	MessageType      MessageType `gorm:"column:message_type;size:16;not null"`
	AffectionChange  int         `gorm:"column:affection_change;not null;default:0"`
	EmotionTriggered string      `gorm:"column:emotion_triggered;size:64"`
	BackstoryID      string      `gorm:"column:backstory_id;size:64"`
	Timestamp        time.Time   `gorm:"column:timestamp;not null;index:idx_dialogues_state_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Dialogue) TableName() string {
	return "dialogues"
}

// NewState describes the input for lazy game-state creation. Optional fields
// default per the data model: affection 0, status "stranger", count 0,
// emotion "neutral", no unlocked backstories.
type NewState struct {
	UserID             uint
	CharacterID        uint
	AffectionLevel     *int
	RelationshipStatus *string
	ConversationCount  *int
	CurrentEmotion     *string
	Settings           []byte
}

// StateUpdate carries the partial fields of a game-state mutation. Nil fields
// are left untouched; UnlockedBackstories and Settings replace the stored
// value wholesale, never deep-merge.
type StateUpdate struct {
	AffectionLevel      *int
	RelationshipStatus  *string
	ConversationCount   *int
	CurrentEmotion      *string
	UnlockedBackstories *[]string
	Settings            []byte
	LastSavedAt         *time.Time
}

// NewDialogue describes the input for a dialogue append. Timestamp is
// assigned by the store, never by the caller.
type NewDialogue struct {
	GameStateID      uint
	Speaker          Speaker
	Message          string
	MessageType      MessageType
	AffectionChange  int
	EmotionTriggered string
	BackstoryID      string
}

func (d NewDialogue) validate() error {
	switch d.Speaker {
	case SpeakerCharacter, SpeakerPlayer:
	default:
		return ErrInvalidSpeaker
	}
	switch d.MessageType {
	case MessageTypeChoice, MessageTypeCustom, MessageTypeCharacter, MessageTypeBackstory:
	default:
		return ErrInvalidMessageType
	}
	return nil
}
