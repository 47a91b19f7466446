package characters

import (
	"time"

	"gorm.io/datatypes"
)

// Character is a playable character record. EmotionStates defines the
// vocabulary of valid currentEmotion values for any game state referencing it.
type Character struct {
	ID            uint                        `gorm:"column:id;primaryKey"`
	Name          string                      `gorm:"column:name;size:190;not null"`
	Description   string                      `gorm:"column:description;type:text;not null"`
	Personality   string                      `gorm:"column:personality;type:text;not null"`
	Sprite        string                      `gorm:"column:sprite;size:512;not null"`
	Color         string                      `gorm:"column:color;size:32;not null"`
	Traits        datatypes.JSONSlice[string] `gorm:"column:traits"`
	EmotionStates datatypes.JSONSlice[string] `gorm:"column:emotion_states"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Character) TableName() string {
	return "characters"
}

// NewCharacter describes the input for catalog insertion.
type NewCharacter struct {
	Name          string
	Description   string
	Personality   string
	Sprite        string
	Color         string
	Traits        []string
	EmotionStates []string
}

// canonicalCharacters is the seed catalog inserted into an empty store.
func canonicalCharacters() []NewCharacter {
	return []NewCharacter{
		{
			Name:          "Rick Sanchez (C-137)",
			Description:   "Genius scientist and interdimensional traveler with a cynical worldview and god complex.",
			Personality:   "Rick is brilliant but arrogant, nihilistic yet protective of his family. He uses science and sarcasm as shields against emotional vulnerability. Despite his claims of not caring, he deeply loves his family but struggles to express it healthily.",
			Sprite:        "/characters/rick.jpg",
			Color:         "#00D4AA",
			Traits:        []string{"genius", "cynical", "alcoholic", "protective", "emotionally_distant"},
			EmotionStates: []string{"neutral", "annoyed", "drunk", "excited", "angry", "vulnerable", "smug"},
		},
		{
			Name:          "Morty Smith",
			Description:   "Rick's grandson, a nervous but good-hearted teenager who gets dragged into interdimensional adventures.",
			Personality:   "Morty is anxious and insecure but has a strong moral compass. He's often overwhelmed by Rick's adventures but is growing more confident and assertive. He seeks approval while trying to do the right thing.",
			Sprite:        "/characters/morty.jpg",
			Color:         "#FFB800",
			Traits:        []string{"anxious", "moral", "growing", "loyal", "insecure", "brave_when_needed"},
			EmotionStates: []string{"nervous", "excited", "scared", "determined", "happy", "confused", "angry"},
		},
		{
			Name:          "Evil Morty",
			Description:   "A cold, calculating version of Morty who has transcended his naive nature through dark experiences.",
			Personality:   "Evil Morty is manipulative, intelligent, and ruthlessly pragmatic. He's tired of being underestimated and has developed a cynical worldview that rivals Rick's. He values control and independence above all else.",
			Sprite:        "/characters/evil-morty.png",
			Color:         "#8B0000",
			Traits:        []string{"manipulative", "intelligent", "cold", "calculating", "independent", "ruthless"},
			EmotionStates: []string{"cold", "calculating", "angry", "satisfied", "contemplative", "sinister", "disappointed"},
		},
		{
			Name:          "Rick Prime",
			Description:   "The most dangerous Rick in the multiverse, who killed C-137 Rick's family and represents pure chaos.",
			Personality:   "Rick Prime is the darkest version of Rick - completely without empathy or attachment. He's a force of pure destruction who finds joy in causing pain. He represents what Rick could become without any emotional connections.",
			Sprite:        "/characters/RICKPRIME.webp",
			Color:         "#FF0000",
			Traits:        []string{"psychopathic", "destructive", "chaotic", "brilliant", "remorseless", "unpredictable"},
			EmotionStates: []string{"maniacal", "cold", "amused", "violent", "bored", "excited", "contemptuous"},
		},
	}
}
