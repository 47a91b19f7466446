package conversation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/plumbus-games/portal-hearts/backend/internal/game"
	"github.com/plumbus-games/portal-hearts/backend/internal/settings"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the OpenRouter OpenAI-compatible endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	defaultTimeout  = 30 * time.Second
	maxHistoryTurns = 20
)

// OpenRouterConfig configures the live gateway.
type OpenRouterConfig struct {
	// APIKey is the server-wide key, used when the user has not supplied
	// their own in settings.
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// Fallback answers when neither the user nor the server has a key.
	Fallback Gateway
	Logger   *zap.Logger
}

// OpenRouter is the live gateway: it proxies the conversation to an
// OpenAI-compatible model provider. The API key and model choice are threaded
// through per-user settings, so the underlying client is built per request.
type OpenRouter struct {
	apiKey   string
	baseURL  string
	timeout  time.Duration
	fallback Gateway
	logger   *zap.Logger
	pick     func(n int) int
}

// NewOpenRouter constructs the live gateway.
func NewOpenRouter(cfg OpenRouterConfig) *OpenRouter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenRouter{
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		timeout:  timeout,
		fallback: cfg.Fallback,
		logger:   logger,
		pick:     rand.IntN,
	}
}

// GenerateReply asks the configured model for the character's next line. With
// no usable API key the request is handed to the fallback gateway; provider
// failures surface as ErrUpstreamUnavailable.
func (g *OpenRouter) GenerateReply(ctx context.Context, request Request) (Reply, error) {
	apiKey := strings.TrimSpace(request.Settings.OpenrouterAPIKey)
	if apiKey == "" {
		apiKey = g.apiKey
	}
	if apiKey == "" {
		if g.fallback != nil {
			return g.fallback.GenerateReply(ctx, request)
		}
		return Reply{}, fmt.Errorf("%w: no api key configured", ErrUpstreamUnavailable)
	}

	model := request.Settings.AIModel
	if model == "" {
		model = settings.DefaultAIModel
	}

	clientConfig := openaigo.DefaultConfig(apiKey)
	clientConfig.BaseURL = g.baseURL
	client := openaigo.NewClientWithConfig(clientConfig)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	response, err := client.CreateChatCompletion(callCtx, openaigo.ChatCompletionRequest{
		Model:    model,
		Messages: g.buildMessages(request),
	})
	if err != nil {
		g.logger.Warn("model provider request failed",
			zap.String("model", model),
			zap.Error(err))
		return Reply{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if len(response.Choices) == 0 {
		return Reply{}, fmt.Errorf("%w: provider returned no choices", ErrUpstreamUnavailable)
	}

	return Reply{
		Message:        strings.TrimSpace(response.Choices[0].Message.Content),
		AffectionDelta: g.pick(3) - 1,
		Emotion:        g.pickEmotion(request),
	}, nil
}

func (g *OpenRouter) buildMessages(request Request) []openaigo.ChatCompletionMessage {
	messages := []openaigo.ChatCompletionMessage{
		{
			Role:    openaigo.ChatMessageRoleSystem,
			Content: systemPrompt(request),
		},
	}

	history := request.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, turn := range history {
		role := openaigo.ChatMessageRoleUser
		if turn.Speaker == game.SpeakerCharacter {
			role = openaigo.ChatMessageRoleAssistant
		}
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    role,
			Content: turn.Message,
		})
	}

	return append(messages, openaigo.ChatCompletionMessage{
		Role:    openaigo.ChatMessageRoleUser,
		Content: request.Message,
	})
}

func systemPrompt(request Request) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "You are %s in a dating-simulator visual novel. ", request.Character.Name)
	builder.WriteString(request.Character.Personality)
	if len(request.Character.Traits) > 0 {
		fmt.Fprintf(&builder, " Core traits: %s.", strings.Join(request.Character.Traits, ", "))
	}
	builder.WriteString(" Stay in character and keep replies to a few sentences.")
	if !request.Settings.NsfwContent {
		builder.WriteString(" Keep all content safe-for-work.")
	}
	return builder.String()
}

func (g *OpenRouter) pickEmotion(request Request) string {
	states := request.Character.EmotionStates
	if len(states) == 0 {
		return "neutral"
	}
	return states[g.pick(len(states))]
}
