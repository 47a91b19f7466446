package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/plumbus-games/portal-hearts/backend/internal/characters"
	"github.com/plumbus-games/portal-hearts/backend/internal/conversation"
	"github.com/plumbus-games/portal-hearts/backend/internal/game"
	"github.com/plumbus-games/portal-hearts/backend/internal/saves"
	"github.com/plumbus-games/portal-hearts/backend/internal/users"
	"go.uber.org/zap"
)

const authUserIDContextKey = "portal_hearts_user_id"

var (
	errMissingUsersService = errors.New("users service dependency required")
	errMissingCatalog      = errors.New("character catalog dependency required")
	errMissingGameService  = errors.New("game service dependency required")
	errMissingSavesService = errors.New("saves service dependency required")
	errMissingGateway      = errors.New("conversation gateway dependency required")
	errMissingTokenManager = errors.New("token manager dependency required")
)

// SessionTokenManager issues and validates the bearer tokens handed out at login.
type SessionTokenManager interface {
	IssueToken(userID uint) (string, int64, error)
	ValidateToken(token string) (uint, error)
}

// Dependencies wires the HTTP layer to the stores and the conversation gateway.
type Dependencies struct {
	Users   *users.Service
	Catalog *characters.Catalog
	Game    *game.Service
	Saves   *saves.Service
	Gateway conversation.Gateway
	Tokens  SessionTokenManager
	Clock   func() time.Time
	Logger  *zap.Logger
}

// NewHTTPHandler builds the gin router serving the game API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalog
	}
	if deps.Game == nil {
		return nil, errMissingGameService
	}
	if deps.Saves == nil {
		return nil, errMissingSavesService
	}
	if deps.Gateway == nil {
		return nil, errMissingGateway
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		users:   deps.Users,
		catalog: deps.Catalog,
		game:    deps.Game,
		saves:   deps.Saves,
		gateway: deps.Gateway,
		tokens:  deps.Tokens,
		clock:   clock,
		logger:  logger,
	}

	router.GET("/api/health", handler.handleHealth)
	router.POST("/api/auth/login", handler.handleLogin)

	router.GET("/api/characters", handler.handleListCharacters)
	router.GET("/api/characters/:id", handler.handleGetCharacter)

	// The first segment of the pair route is a user id; gin requires the
	// wildcard name to match the single-segment update route below.
	router.GET("/api/game-state/:id/:characterId", handler.handleGetGameState)
	router.POST("/api/game-state", handler.handleCreateGameState)
	router.PUT("/api/game-state/:id", handler.handleUpdateGameState)
	router.GET("/api/game-states/:userId", handler.handleListGameStates)

	router.GET("/api/dialogues/:gameStateId", handler.handleListDialogues)
	router.POST("/api/dialogues", handler.handleAppendDialogue)

	router.GET("/api/backstories/:gameStateId", handler.handleListBackstories)
	router.POST("/api/backstories", handler.handleUnlockBackstory)

	router.POST("/api/conversation", handler.handleConversation)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/user/:userId/settings", handler.handleGetSettings)
	protected.PUT("/user/:userId/settings", handler.handleUpdateSettings)
	protected.GET("/save-slots/:userId", handler.handleListSaveSlots)
	protected.GET("/save-slots/:userId/:slotNumber", handler.handleGetSaveSlot)
	protected.POST("/save-slots", handler.handleCreateSaveSlot)
	protected.DELETE("/save-slots/:userId/:slotNumber", handler.handleDeleteSaveSlot)

	return router, nil
}

type httpHandler struct {
	users   *users.Service
	catalog *characters.Catalog
	game    *game.Service
	saves   *saves.Service
	gateway conversation.Gateway
	tokens  SessionTokenManager
	clock   func() time.Time
	logger  *zap.Logger
}
