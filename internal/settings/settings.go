package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Speed enumerates the animation and typing speed options.
type Speed string

const (
	SpeedSlow    Speed = "slow"
	SpeedNormal  Speed = "normal"
	SpeedFast    Speed = "fast"
	SpeedInstant Speed = "instant"
)

const (
	minVolume = 0
	maxVolume = 100
)

// DefaultAIModel is used when no model has been chosen.
const DefaultAIModel = "deepseek/deepseek-chat-v3-0324:free"

// allowedAIModels is the fixed set of OpenRouter model identifiers a user may select.
var allowedAIModels = map[string]struct{}{
	"deepseek/deepseek-chat-v3-0324:free": {},
	"deepseek/deepseek-r1-0528:free":      {},
	"deepseek/deepseek-r1:free":           {},
	"deepseek/deepseek-chat:free":         {},
	"google/gemini-2.0-flash-exp:free":    {},
	"google/gemma-3-27b-it:free":          {},
	"mistralai/mistral-nemo:free":         {},
	"meta-llama/llama-4-maverick:free":    {},
	"mistralai/mistral-7b-instruct:free":  {},
}

// ErrInvalidSettings indicates a settings payload failed validation.
var ErrInvalidSettings = errors.New("settings: invalid settings")

// FieldError reports the specific field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrInvalidSettings, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidSettings
}

func newFieldError(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// Settings is the full set of recognized user preferences. A user carries a
// global copy; a game state may carry an override that wins for that session.
type Settings struct {
	MasterVolume      int    `json:"masterVolume"`
	SfxVolume         int    `json:"sfxVolume"`
	MusicVolume       int    `json:"musicVolume"`
	AnimationSpeed    Speed  `json:"animationSpeed"`
	TypingSpeed       Speed  `json:"typingSpeed"`
	ParticleEffects   bool   `json:"particleEffects"`
	PortalGlow        bool   `json:"portalGlow"`
	NsfwContent       bool   `json:"nsfwContent"`
	AutosaveFrequency int    `json:"autosaveFrequency"`
	OpenrouterAPIKey  string `json:"openrouterApiKey"`
	AIModel           string `json:"aiModel"`
}

// Defaults returns the hard-coded default settings. Every merge bottoms out here.
func Defaults() Settings {
	return Settings{
		MasterVolume:      75,
		SfxVolume:         50,
		MusicVolume:       25,
		AnimationSpeed:    SpeedNormal,
		TypingSpeed:       SpeedNormal,
		ParticleEffects:   true,
		PortalGlow:        true,
		NsfwContent:       false,
		AutosaveFrequency: 5,
		OpenrouterAPIKey:  "",
		AIModel:           DefaultAIModel,
	}
}

// Validate checks every field against its documented bounds.
func (s Settings) Validate() error {
	if s.MasterVolume < minVolume || s.MasterVolume > maxVolume {
		return newFieldError("masterVolume", "must be between 0 and 100")
	}
	if s.SfxVolume < minVolume || s.SfxVolume > maxVolume {
		return newFieldError("sfxVolume", "must be between 0 and 100")
	}
	if s.MusicVolume < minVolume || s.MusicVolume > maxVolume {
		return newFieldError("musicVolume", "must be between 0 and 100")
	}
	if !validSpeed(s.AnimationSpeed) {
		return newFieldError("animationSpeed", "must be one of slow, normal, fast, instant")
	}
	if !validSpeed(s.TypingSpeed) {
		return newFieldError("typingSpeed", "must be one of slow, normal, fast, instant")
	}
	if s.AutosaveFrequency < 0 {
		return newFieldError("autosaveFrequency", "must be zero or a positive number of minutes")
	}
	if _, ok := allowedAIModels[s.AIModel]; !ok {
		return newFieldError("aiModel", "is not an allowed model identifier")
	}
	return nil
}

func validSpeed(value Speed) bool {
	switch value {
	case SpeedSlow, SpeedNormal, SpeedFast, SpeedInstant:
		return true
	}
	return false
}

// Effective resolves the settings for a session: hard-coded defaults, overlaid
// with the user's stored global blob, overlaid with the game-state override.
// Either blob may be nil or partial; fields absent from both stay at defaults.
// Unknown fields in stored blobs are ignored — rejection happens at write time
// via Apply.
func Effective(global, override []byte) (Settings, error) {
	resolved := Defaults()
	if err := overlay(&resolved, global); err != nil {
		return Settings{}, err
	}
	if err := overlay(&resolved, override); err != nil {
		return Settings{}, err
	}
	return resolved, nil
}

func overlay(target *Settings, blob []byte) error {
	if len(blob) == 0 || bytes.Equal(bytes.TrimSpace(blob), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(blob, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// Apply merges a caller-supplied partial patch over the stored blob, validates
// the result, and returns it alongside its canonical JSON encoding. Unknown
// fields in the patch are rejected.
func Apply(stored, patch []byte) (Settings, []byte, error) {
	resolved, err := Effective(stored, nil)
	if err != nil {
		return Settings{}, nil, err
	}

	if len(patch) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(patch))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&resolved); err != nil {
			return Settings{}, nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
	}

	if err := resolved.Validate(); err != nil {
		return Settings{}, nil, err
	}

	encoded, err := json.Marshal(resolved)
	if err != nil {
		return Settings{}, nil, err
	}
	return resolved, encoded, nil
}
