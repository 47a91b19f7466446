package conversation

import (
	"context"
	"errors"

	"github.com/plumbus-games/portal-hearts/backend/internal/characters"
	"github.com/plumbus-games/portal-hearts/backend/internal/game"
	"github.com/plumbus-games/portal-hearts/backend/internal/settings"
)

// ErrUpstreamUnavailable indicates the model provider could not be reached or
// answered with an error. It maps to a 502 at the HTTP layer and never takes
// the process down.
var ErrUpstreamUnavailable = errors.New("conversation: upstream model provider unavailable")

// Turn is one prior exchange handed to the gateway as context.
type Turn struct {
	Speaker game.Speaker
	Message string
}

// Request carries everything the gateway needs to produce a reply.
type Request struct {
	Character characters.Character
	Message   string
	History   []Turn
	Settings  settings.Settings
}

// Reply is the gateway's answer: the character's line, an affection delta for
// the calling layer to clamp and apply, and an emotion tag drawn from the
// character's vocabulary.
type Reply struct {
	Message        string
	AffectionDelta int
	Emotion        string
}

// Gateway produces a character reply to a player message. Implementations
// must respect ctx cancellation: callers bound the call with a timeout and
// report failure rather than blocking indefinitely.
type Gateway interface {
	GenerateReply(ctx context.Context, request Request) (Reply, error)
}
