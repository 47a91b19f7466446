package conversation

import (
	"context"
	"math/rand/v2"
)

// cannedLines holds the offline reply pools, keyed by catalog character id.
// Unknown characters fall back to the first pool.
var cannedLines = map[uint][]string{
	1: {
		"Wubba lubba dub dub! *burp* What do you want?",
		"Listen, I'm busy inventing stuff. Make it quick.",
		"Great, another dimension where people ask stupid questions.",
		"You know what? Fine. *takes swig* What's your deal?",
	},
	2: {
		"Oh geez, h-hi there! I'm Morty!",
		"I-I don't know about this, but... hi?",
		"W-wow, this is really happening! Are you real?",
		"Aw geez, I hope Rick doesn't find out about this...",
	},
	3: {
		"How... interesting. Another visitor.",
		"You think you understand me, but you don't.",
		"Everything has a purpose. Even this conversation.",
		"I've transcended what other Mortys could never imagine.",
	},
	4: {
		"*laughs maniacally* Oh, this is rich!",
		"You want to chat with the Rick who broke the game?",
		"I'm the Rick that other Ricks fear. What makes you special?",
		"Cute. Another ant thinks it can understand a god.",
	},
}

// Canned is the offline gateway: it answers every message with a random
// pre-written line and a small random affection delta. It backs local
// development, tests, and any deployment without a provider API key.
type Canned struct {
	pick func(n int) int
}

// NewCanned constructs the offline gateway.
func NewCanned() *Canned {
	return &Canned{pick: rand.IntN}
}

// GenerateReply picks a canned line for the character. The affection delta is
// uniform over [-1, 1]; the emotion comes from the character's own vocabulary
// when it has one.
func (c *Canned) GenerateReply(_ context.Context, request Request) (Reply, error) {
	lines, ok := cannedLines[request.Character.ID]
	if !ok || len(lines) == 0 {
		lines = cannedLines[1]
	}
	return Reply{
		Message:        lines[c.pick(len(lines))],
		AffectionDelta: c.pick(3) - 1,
		Emotion:        c.pickEmotion(request),
	}, nil
}

func (c *Canned) pickEmotion(request Request) string {
	states := request.Character.EmotionStates
	if len(states) == 0 {
		return "neutral"
	}
	return states[c.pick(len(states))]
}
