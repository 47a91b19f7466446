package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plumbus-games/portal-hearts/backend/internal/conversation"
	"github.com/plumbus-games/portal-hearts/backend/internal/game"
	"github.com/plumbus-games/portal-hearts/backend/internal/saves"
	"github.com/plumbus-games/portal-hearts/backend/internal/settings"
)

const conversationHistoryTurns = 10

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": h.clock().UTC().Format(time.RFC3339),
	})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var payload loginRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}
	if payload.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must not be empty"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), payload.Username, payload.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, expiresAt, err := h.tokens.IssueToken(user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      newUserPayload(*user),
	})
}

func (h *httpHandler) handleListCharacters(c *gin.Context) {
	roster, err := h.catalog.All(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	payload := make([]characterPayload, 0, len(roster))
	for _, character := range roster {
		payload = append(payload, newCharacterPayload(character))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleGetCharacter(c *gin.Context) {
	characterID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	character, err := h.catalog.Get(c.Request.Context(), characterID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if character == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}
	c.JSON(http.StatusOK, newCharacterPayload(*character))
}

func (h *httpHandler) handleGetGameState(c *gin.Context) {
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	characterID, ok := parseUintParam(c, "characterId")
	if !ok {
		return
	}

	state, err := h.game.GetState(c.Request.Context(), userID, characterID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game state not found"})
		return
	}
	c.JSON(http.StatusOK, newGameStatePayload(*state))
}

func (h *httpHandler) handleCreateGameState(c *gin.Context) {
	var payload createGameStateRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}
	if payload.UserID == 0 || payload.CharacterID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and characterId are required"})
		return
	}

	state, err := h.game.CreateState(c.Request.Context(), game.NewState{
		UserID:             payload.UserID,
		CharacterID:        payload.CharacterID,
		AffectionLevel:     payload.AffectionLevel,
		RelationshipStatus: payload.RelationshipStatus,
		ConversationCount:  payload.ConversationCount,
		CurrentEmotion:     payload.CurrentEmotion,
		Settings:           payload.Settings,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newGameStatePayload(*state))
}

func (h *httpHandler) handleUpdateGameState(c *gin.Context) {
	stateID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var payload updateGameStateRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}
	if len(payload.Settings) > 0 && string(payload.Settings) != "null" {
		if _, _, err := settings.Apply(nil, payload.Settings); err != nil {
			h.respondError(c, err)
			return
		}
	}

	state, err := h.game.UpdateState(c.Request.Context(), stateID, game.StateUpdate{
		AffectionLevel:      payload.AffectionLevel,
		RelationshipStatus:  payload.RelationshipStatus,
		ConversationCount:   payload.ConversationCount,
		CurrentEmotion:      payload.CurrentEmotion,
		UnlockedBackstories: payload.UnlockedBackstories,
		Settings:            payload.Settings,
		LastSavedAt:         payload.LastSavedAt,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newGameStatePayload(*state))
}

func (h *httpHandler) handleListGameStates(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}

	states, err := h.game.ListStates(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	payload := make([]gameStatePayload, 0, len(states))
	for _, state := range states {
		payload = append(payload, newGameStatePayload(state))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleListDialogues(c *gin.Context) {
	stateID, ok := parseUintParam(c, "gameStateId")
	if !ok {
		return
	}

	limit := game.DefaultDialogueLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	dialogues, err := h.game.RecentDialogues(c.Request.Context(), stateID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	payload := make([]dialoguePayload, 0, len(dialogues))
	for _, dialogue := range dialogues {
		payload = append(payload, newDialoguePayload(dialogue))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleAppendDialogue(c *gin.Context) {
	var payload appendDialogueRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}

	state, err := h.game.GetStateByID(c.Request.Context(), payload.GameStateID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game state not found"})
		return
	}

	dialogue, err := h.game.AppendDialogue(c.Request.Context(), game.NewDialogue{
		GameStateID:      payload.GameStateID,
		Speaker:          game.Speaker(payload.Speaker),
		Message:          payload.Message,
		MessageType:      game.MessageType(payload.MessageType),
		AffectionChange:  payload.AffectionChange,
		EmotionTriggered: payload.EmotionTriggered,
		BackstoryID:      payload.BackstoryID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newDialoguePayload(*dialogue))
}

func (h *httpHandler) handleListBackstories(c *gin.Context) {
	stateID, ok := parseUintParam(c, "gameStateId")
	if !ok {
		return
	}

	unlocked, err := h.game.UnlockedBackstories(c.Request.Context(), stateID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unlockedBackstories": unlocked})
}

func (h *httpHandler) handleUnlockBackstory(c *gin.Context) {
	var payload unlockBackstoryRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}
	if payload.BackstoryID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "backstoryId must not be empty"})
		return
	}

	state, err := h.game.UnlockBackstory(c.Request.Context(), payload.GameStateID, payload.BackstoryID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unlockedBackstories": []string(state.UnlockedBackstories)})
}

func (h *httpHandler) handleConversation(c *gin.Context) {
	var payload conversationRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message must not be empty"})
		return
	}

	ctx := c.Request.Context()

	character, err := h.catalog.Get(ctx, payload.CharacterID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if character == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}

	user, err := h.users.GetUser(ctx, payload.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	state, err := h.game.GetState(ctx, payload.UserID, payload.CharacterID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var overrideSettings []byte
	if state != nil {
		overrideSettings = []byte(state.Settings)
	}
	effective, err := settings.Effective([]byte(user.GlobalSettings), overrideSettings)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var history []conversation.Turn
	if state != nil {
		recent, err := h.game.RecentDialogues(ctx, state.ID, conversationHistoryTurns)
		if err != nil {
			h.respondError(c, err)
			return
		}
		for _, dialogue := range recent {
			history = append(history, conversation.Turn{Speaker: dialogue.Speaker, Message: dialogue.Message})
		}
	}

	reply, err := h.gateway.GenerateReply(ctx, conversation.Request{
		Character: *character,
		Message:   payload.Message,
		History:   history,
		Settings:  effective,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Progression only applies once a game state exists for the pair. A
	// conversation without one still gets a reply, it just is not recorded.
	if state != nil {
		if err := h.recordConversationTurn(c, state, payload.Message, reply); err != nil {
			h.respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, conversationResponse{
		Message:         reply.Message,
		AffectionChange: reply.AffectionDelta,
		Emotion:         reply.Emotion,
	})
}

func (h *httpHandler) recordConversationTurn(c *gin.Context, state *game.State, message string, reply conversation.Reply) error {
	ctx := c.Request.Context()

	if _, err := h.game.AppendDialogue(ctx, game.NewDialogue{
		GameStateID: state.ID,
		Speaker:     game.SpeakerPlayer,
		Message:     message,
		MessageType: game.MessageTypeCustom,
	}); err != nil {
		return err
	}
	if _, err := h.game.AppendDialogue(ctx, game.NewDialogue{
		GameStateID:      state.ID,
		Speaker:          game.SpeakerCharacter,
		Message:          reply.Message,
		MessageType:      game.MessageTypeCharacter,
		AffectionChange:  reply.AffectionDelta,
		EmotionTriggered: reply.Emotion,
	}); err != nil {
		return err
	}

	affection := game.ClampAffection(state.AffectionLevel, reply.AffectionDelta)
	status := game.RelationshipForAffection(affection)
	count := state.ConversationCount + 1
	update := game.StateUpdate{
		AffectionLevel:     &affection,
		RelationshipStatus: &status,
		ConversationCount:  &count,
	}
	if reply.Emotion != "" {
		update.CurrentEmotion = &reply.Emotion
	}

	_, err := h.game.UpdateState(ctx, state.ID, update)
	return err
}

func (h *httpHandler) handleGetSettings(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	resolved, err := settings.Effective([]byte(user.GlobalSettings), nil)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolved)
}

func (h *httpHandler) handleUpdateSettings(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}

	patch, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body could not be read"})
		return
	}

	_, resolved, err := h.users.UpdateGlobalSettings(c.Request.Context(), userID, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolved)
}

func (h *httpHandler) handleListSaveSlots(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}

	slots, err := h.saves.List(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	payload := make([]saveSlotPayload, 0, len(slots))
	for _, slot := range slots {
		payload = append(payload, newSaveSlotPayload(slot))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleGetSaveSlot(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	slotNumber, ok := parseIntParam(c, "slotNumber")
	if !ok {
		return
	}

	slot, err := h.saves.Get(c.Request.Context(), userID, slotNumber)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if slot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "save slot not found"})
		return
	}
	c.JSON(http.StatusOK, newSaveSlotPayload(*slot))
}

func (h *httpHandler) handleCreateSaveSlot(c *gin.Context) {
	var payload createSaveSlotRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}
	if payload.SlotNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slotNumber must be a positive integer"})
		return
	}
	if callerID := c.MustGet(authUserIDContextKey).(uint); callerID != payload.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "token does not grant access to this user"})
		return
	}

	ctx := c.Request.Context()

	state, err := h.game.GetStateByID(ctx, payload.GameStateID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game state not found"})
		return
	}
	if state.UserID != payload.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "game state belongs to another user"})
		return
	}

	characterName := ""
	character, err := h.catalog.Get(ctx, state.CharacterID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if character != nil {
		characterName = character.Name
	}

	dialogueCount, err := h.game.CountDialogues(ctx, state.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	snapshot, err := json.Marshal(newGameStatePayload(*state))
	if err != nil {
		h.respondError(c, err)
		return
	}

	slot, err := h.saves.Save(ctx, saves.NewSlot{
		UserID:             payload.UserID,
		SlotNumber:         payload.SlotNumber,
		Snapshot:           snapshot,
		DialogueCount:      int(dialogueCount),
		CharacterName:      characterName,
		AffectionLevel:     state.AffectionLevel,
		RelationshipStatus: state.RelationshipStatus,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSaveSlotPayload(*slot))
}

func (h *httpHandler) handleDeleteSaveSlot(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	slotNumber, ok := parseIntParam(c, "slotNumber")
	if !ok {
		return
	}

	if err := h.saves.Delete(c.Request.Context(), userID, slotNumber); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || value == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s must be a positive integer", name)})
		return 0, false
	}
	return uint(value), true
}

func parseIntParam(c *gin.Context, name string) (int, bool) {
	value, err := strconv.Atoi(c.Param(name))
	if err != nil || value < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s must be a positive integer", name)})
		return 0, false
	}
	return value, true
}
