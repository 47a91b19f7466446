package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/plumbus-games/portal-hearts/backend/internal/conversation"
	"github.com/plumbus-games/portal-hearts/backend/internal/game"
	"github.com/plumbus-games/portal-hearts/backend/internal/settings"
	"github.com/plumbus-games/portal-hearts/backend/internal/users"
	"go.uber.org/zap"
)

// respondError maps store and gateway errors onto HTTP statuses. Anything
// outside the known taxonomy is a 500 and gets logged with its cause.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var fieldErr *settings.FieldError

	switch {
	case errors.Is(err, users.ErrNotFound), errors.Is(err, game.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, users.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
	case errors.Is(err, game.ErrStateExists):
		c.JSON(http.StatusConflict, gin.H{"error": "game state already exists for this user and character"})
	case errors.As(err, &fieldErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings", "field": fieldErr.Field, "detail": fieldErr.Reason})
	case errors.Is(err, settings.ErrInvalidSettings):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
	case errors.Is(err, users.ErrInvalidUsername),
		errors.Is(err, game.ErrInvalidSpeaker),
		errors.Is(err, game.ErrInvalidMessageType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, conversation.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "ai provider unavailable"})
	default:
		h.logger.Error("request failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
