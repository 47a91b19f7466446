package server

import (
	"encoding/json"
	"time"

	"github.com/plumbus-games/portal-hearts/backend/internal/characters"
	"github.com/plumbus-games/portal-hearts/backend/internal/game"
	"github.com/plumbus-games/portal-hearts/backend/internal/saves"
	"github.com/plumbus-games/portal-hearts/backend/internal/users"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expiresAt"`
	User      userPayload `json:"user"`
}

type userPayload struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newUserPayload(user users.User) userPayload {
	return userPayload{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		ProfilePicture: user.ProfilePicture,
		CreatedAt:      user.CreatedAt,
	}
}

type characterPayload struct {
	ID            uint     `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Personality   string   `json:"personality"`
	Sprite        string   `json:"sprite"`
	Color         string   `json:"color"`
	Traits        []string `json:"traits"`
	EmotionStates []string `json:"emotionStates"`
}

func newCharacterPayload(character characters.Character) characterPayload {
	return characterPayload{
		ID:            character.ID,
		Name:          character.Name,
		Description:   character.Description,
		Personality:   character.Personality,
		Sprite:        character.Sprite,
		Color:         character.Color,
		Traits:        character.Traits,
		EmotionStates: character.EmotionStates,
	}
}

type createGameStateRequest struct {
	UserID             uint            `json:"userId"`
	CharacterID        uint            `json:"characterId"`
	AffectionLevel     *int            `json:"affectionLevel"`
	RelationshipStatus *string         `json:"relationshipStatus"`
	ConversationCount  *int            `json:"conversationCount"`
	CurrentEmotion     *string         `json:"currentEmotion"`
	Settings           json.RawMessage `json:"settings"`
}

type updateGameStateRequest struct {
	AffectionLevel      *int            `json:"affectionLevel"`
	RelationshipStatus  *string         `json:"relationshipStatus"`
	ConversationCount   *int            `json:"conversationCount"`
	CurrentEmotion      *string         `json:"currentEmotion"`
	UnlockedBackstories *[]string       `json:"unlockedBackstories"`
	Settings            json.RawMessage `json:"settings"`
	LastSavedAt         *time.Time      `json:"lastSavedAt"`
}

type gameStatePayload struct {
	ID                  uint            `json:"id"`
	UserID              uint            `json:"userId"`
	CharacterID         uint            `json:"characterId"`
	AffectionLevel      int             `json:"affectionLevel"`
	RelationshipStatus  string          `json:"relationshipStatus"`
	ConversationCount   int             `json:"conversationCount"`
	CurrentEmotion      string          `json:"currentEmotion"`
	UnlockedBackstories []string        `json:"unlockedBackstories"`
	Settings            json.RawMessage `json:"settings"`
	LastSavedAt         *time.Time      `json:"lastSavedAt"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

func newGameStatePayload(state game.State) gameStatePayload {
	unlocked := []string(state.UnlockedBackstories)
	if unlocked == nil {
		unlocked = []string{}
	}
	return gameStatePayload{
		ID:                  state.ID,
		UserID:              state.UserID,
		CharacterID:         state.CharacterID,
		AffectionLevel:      state.AffectionLevel,
		RelationshipStatus:  state.RelationshipStatus,
		ConversationCount:   state.ConversationCount,
		CurrentEmotion:      state.CurrentEmotion,
		UnlockedBackstories: unlocked,
		Settings:            json.RawMessage(state.Settings),
		LastSavedAt:         state.LastSavedAt,
		CreatedAt:           state.CreatedAt,
		UpdatedAt:           state.UpdatedAt,
	}
}

type appendDialogueRequest struct {
	GameStateID      uint   `json:"gameStateId"`
	Speaker          string `json:"speaker"`
	Message          string `json:"message"`
	MessageType      string `json:"messageType"`
	AffectionChange  int    `json:"affectionChange"`
	EmotionTriggered string `json:"emotionTriggered"`
	BackstoryID      string `json:"backstoryId"`
}

type dialoguePayload struct {
	ID               uint      `json:"id"`
	GameStateID      uint      `json:"gameStateId"`
	Speaker          string    `json:"speaker"`
	Message          string    `json:"message"`
	MessageType      string    `json:"messageType"`
	AffectionChange  int       `json:"affectionChange"`
	EmotionTriggered string    `json:"emotionTriggered,omitempty"`
	BackstoryID      string    `json:"backstoryId,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

func newDialoguePayload(dialogue game.Dialogue) dialoguePayload {
	return dialoguePayload{
		ID:               dialogue.ID,
		GameStateID:      dialogue.GameStateID,
		Speaker:          string(dialogue.Speaker),
		Message:          dialogue.Message,
		MessageType:      string(dialogue.MessageType),
		AffectionChange:  dialogue.AffectionChange,
		EmotionTriggered: dialogue.EmotionTriggered,
		BackstoryID:      dialogue.BackstoryID,
		Timestamp:        dialogue.Timestamp,
	}
}

type conversationRequest struct {
	UserID      uint   `json:"userId"`
	CharacterID uint   `json:"characterId"`
	Message     string `json:"message"`
}

type conversationResponse struct {
	Message         string `json:"message"`
	AffectionChange int    `json:"affectionChange"`
	Emotion         string `json:"emotion"`
}

type unlockBackstoryRequest struct {
	GameStateID uint   `json:"gameStateId"`
	BackstoryID string `json:"backstoryId"`
}

type createSaveSlotRequest struct {
	UserID      uint `json:"userId"`
	SlotNumber  int  `json:"slotNumber"`
	GameStateID uint `json:"gameStateId"`
}

type saveSlotPayload struct {
	ID                 uint            `json:"id"`
	UserID             uint            `json:"userId"`
	SlotNumber         int             `json:"slotNumber"`
	GameState          json.RawMessage `json:"gameState"`
	DialogueCount      int             `json:"dialogueCount"`
	CharacterName      string          `json:"characterName"`
	AffectionLevel     int             `json:"affectionLevel"`
	RelationshipStatus string          `json:"relationshipStatus"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func newSaveSlotPayload(slot saves.Slot) saveSlotPayload {
	return saveSlotPayload{
		ID:                 slot.ID,
		UserID:             slot.UserID,
		SlotNumber:         slot.SlotNumber,
		GameState:          json.RawMessage(slot.Snapshot),
		DialogueCount:      slot.DialogueCount,
		CharacterName:      slot.CharacterName,
		AffectionLevel:     slot.AffectionLevel,
		RelationshipStatus: slot.RelationshipStatus,
		CreatedAt:          slot.CreatedAt,
		UpdatedAt:          slot.UpdatedAt,
	}
}
