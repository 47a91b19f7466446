package game

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// tickingClock hands out strictly increasing timestamps one second apart.
type tickingClock struct {
	current time.Time
}

func (c *tickingClock) now() time.Time {
	c.current = c.current.Add(time.Second)
	return c.current
}

func newTestService(t *testing.T, name string) (*Service, *tickingClock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&State{}, &Dialogue{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	clock := &tickingClock{current: time.Unix(1700000000, 0).UTC()}
	service, err := NewService(ServiceConfig{Database: db, Clock: clock.now})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, clock
}

func TestCreateStateAppliesDefaults(t *testing.T) {
	service, _ := newTestService(t, "game_defaults")
	ctx := context.Background()

	state, err := service.CreateState(ctx, NewState{UserID: 1, CharacterID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.AffectionLevel != 0 {
		t.Fatalf("expected affection 0, got %d", state.AffectionLevel)
	}
	if state.RelationshipStatus != "stranger" {
		t.Fatalf("expected stranger, got %s", state.RelationshipStatus)
	}
	if state.ConversationCount != 0 {
		t.Fatalf("expected conversation count 0, got %d", state.ConversationCount)
	}
	if state.CurrentEmotion != "neutral" {
		t.Fatalf("expected neutral emotion, got %s", state.CurrentEmotion)
	}
	if len(state.UnlockedBackstories) != 0 {
		t.Fatalf("expected no unlocked backstories, got %v", state.UnlockedBackstories)
	}
}

func TestCreateStateEnforcesPairSingularity(t *testing.T) {
	service, _ := newTestService(t, "game_pair")
	ctx := context.Background()

	if _, err := service.CreateState(ctx, NewState{UserID: 1, CharacterID: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := service.CreateState(ctx, NewState{UserID: 1, CharacterID: 2})
	if !errors.Is(err, ErrStateExists) {
		t.Fatalf("expected ErrStateExists, got %v", err)
	}

	// A different character for the same user is a distinct pair.
	if _, err := service.CreateState(ctx, NewState{UserID: 1, CharacterID: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetStateReturnsNilForUnknownPair(t *testing.T) {
	service, _ := newTestService(t, "game_absent")
	state, err := service.GetState(context.Background(), 7, 7)
	if err != nil {
		t.Fatalf("expected absent value without error, got %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state, got %+v", state)
	}
}

func TestUpdateStateMergesAndStampsUpdatedAt(t *testing.T) {
	service, _ := newTestService(t, "game_update")
	ctx := context.Background()

	created, err := service.CreateState(ctx, NewState{UserID: 1, CharacterID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	affection := 12
	count := 3
	updated, err := service.UpdateState(ctx, created.ID, StateUpdate{
		AffectionLevel:    &affection,
		ConversationCount: &count,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AffectionLevel != 12 || updated.ConversationCount != 3 {
		t.Fatalf("expected merged update, got %+v", updated)
	}
	if updated.CurrentEmotion != "neutral" {
		t.Fatalf("expected unspecified emotion to survive, got %s", updated.CurrentEmotion)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("expected updated_at to advance: %v vs %v", updated.UpdatedAt, created.UpdatedAt)
	}
}

func TestUpdateStateReplacesBackstoriesWholesale(t *testing.T) {
	service, _ := newTestService(t, "game_wholesale")
	ctx := context.Background()

	created, err := service.CreateState(ctx, NewState{UserID: 1, CharacterID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.UnlockBackstory(ctx, created.ID, BackstoryOrigin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	replacement := []string{BackstoryWorstDay}
	updated, err := service.UpdateState(ctx, created.ID, StateUpdate{UnlockedBackstories: &replacement})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated.UnlockedBackstories) != 1 || updated.UnlockedBackstories[0] != BackstoryWorstDay {
		t.Fatalf("expected wholesale replacement, got %v", updated.UnlockedBackstories)
	}
}

func TestUpdateStateFailsOnUnknownID(t *testing.T) {
	service, _ := newTestService(t, "game_update_missing")
	affection := 1
	_, err := service.UpdateState(context.Background(), 555, StateUpdate{AffectionLevel: &affection})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListStatesOrdersByMostRecentlyUpdated(t *testing.T) {
	service, _ := newTestService(t, "game_list")
	ctx := context.Background()

	first, err := service.CreateState(ctx, NewState{UserID: 1, CharacterID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.CreateState(ctx, NewState{UserID: 1, CharacterID: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	affection := 5
	if _, err := service.UpdateState(ctx, first.ID, StateUpdate{AffectionLevel: &affection}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	states, err := service.ListStates(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 states, got %d", len(states))
	}
	if states[0].ID != first.ID || states[1].ID != second.ID {
		t.Fatalf("expected most-recently-updated first, got %d then %d", states[0].ID, states[1].ID)
	}
}

func TestAppendDialogueAssignsStoreTimestamp(t *testing.T) {
	service, clock := newTestService(t, "game_append")
	ctx := context.Background()

	before := clock.current
	dialogue, err := service.AppendDialogue(ctx, NewDialogue{
		GameStateID: 1,
		Speaker:     SpeakerPlayer,
		Message:     "hi",
		MessageType: MessageTypeCustom,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dialogue.Timestamp.After(before) {
		t.Fatalf("expected store-assigned timestamp after %v, got %v", before, dialogue.Timestamp)
	}
	if dialogue.AffectionChange != 0 {
		t.Fatalf("expected affection change default 0, got %d", dialogue.AffectionChange)
	}
}

func TestAppendDialogueRejectsUnknownEnums(t *testing.T) {
	service, _ := newTestService(t, "game_append_invalid")
	ctx := context.Background()

	_, err := service.AppendDialogue(ctx, NewDialogue{GameStateID: 1, Speaker: "narrator", Message: "x", MessageType: MessageTypeCustom})
	if !errors.Is(err, ErrInvalidSpeaker) {
		t.Fatalf("expected ErrInvalidSpeaker, got %v", err)
	}
	_, err = service.AppendDialogue(ctx, NewDialogue{GameStateID: 1, Speaker: SpeakerPlayer, Message: "x", MessageType: "monologue"})
	if !errors.Is(err, ErrInvalidMessageType) {
		t.Fatalf("expected ErrInvalidMessageType, got %v", err)
	}
}

func TestRecentDialoguesReturnsMostRecentInChronologicalOrder(t *testing.T) {
	service, _ := newTestService(t, "game_recent")
	ctx := context.Background()

	messages := []string{"t1", "t2", "t3"}
	for _, message := range messages {
		if _, err := service.AppendDialogue(ctx, NewDialogue{
			GameStateID: 9,
			Speaker:     SpeakerPlayer,
			Message:     message,
			MessageType: MessageTypeCustom,
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	recent, err := service.RecentDialogues(ctx, 9, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 dialogues, got %d", len(recent))
	}
	if recent[0].Message != "t2" || recent[1].Message != "t3" {
		t.Fatalf("expected the two most recent turns ascending, got %s then %s", recent[0].Message, recent[1].Message)
	}
}

func TestRecentDialoguesDefaultsLimit(t *testing.T) {
	service, _ := newTestService(t, "game_recent_default")
	ctx := context.Background()

	if _, err := service.AppendDialogue(ctx, NewDialogue{GameStateID: 4, Speaker: SpeakerCharacter, Message: "hello", MessageType: MessageTypeCharacter}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recent, err := service.RecentDialogues(ctx, 4, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 dialogue, got %d", len(recent))
	}
}

func TestUnlockBackstoryIsIdempotent(t *testing.T) {
	service, _ := newTestService(t, "game_unlock")
	ctx := context.Background()

	created, err := service.CreateState(ctx, NewState{UserID: 1, CharacterID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	once, err := service.UnlockBackstory(ctx, created.ID, BackstoryOrigin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := service.UnlockBackstory(ctx, created.ID, BackstoryOrigin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(once.UnlockedBackstories) != 1 || len(twice.UnlockedBackstories) != 1 {
		t.Fatalf("expected a single unlock after repeat calls, got %v and %v", once.UnlockedBackstories, twice.UnlockedBackstories)
	}

	unlocked, err := service.UnlockedBackstories(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0] != BackstoryOrigin {
		t.Fatalf("expected [origin], got %v", unlocked)
	}
}

func TestUnlockBackstoryFailsOnUnknownState(t *testing.T) {
	service, _ := newTestService(t, "game_unlock_missing")
	_, err := service.UnlockBackstory(context.Background(), 321, BackstoryOrigin)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnlockedBackstoriesEmptyForFreshState(t *testing.T) {
	service, _ := newTestService(t, "game_unlock_empty")
	ctx := context.Background()

	created, err := service.CreateState(ctx, NewState{UserID: 2, CharacterID: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unlocked, err := service.UnlockedBackstories(ctx, created.ID)
	if err != nil {
		t.Fatalf("expected empty set without error, got %v", err)
	}
	if len(unlocked) != 0 {
		t.Fatalf("expected empty set, got %v", unlocked)
	}
}

func TestMonotonicityAcrossLegalOperations(t *testing.T) {
	service, _ := newTestService(t, "game_monotonic")
	ctx := context.Background()

	created, err := service.CreateState(ctx, NewState{UserID: 3, CharacterID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	previousCount := created.ConversationCount
	previousUnlocks := len(created.UnlockedBackstories)
	for turn := 1; turn <= 5; turn++ {
		count := previousCount + 1
		state, err := service.UpdateState(ctx, created.ID, StateUpdate{ConversationCount: &count})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state.ConversationCount < previousCount {
			t.Fatalf("conversation count decreased: %d -> %d", previousCount, state.ConversationCount)
		}
		previousCount = state.ConversationCount

		if turn == 2 || turn == 4 {
			state, err = service.UnlockBackstory(ctx, created.ID, BackstoryOrigin)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if len(state.UnlockedBackstories) < previousUnlocks {
			t.Fatalf("unlocked backstories shrank: %d -> %d", previousUnlocks, len(state.UnlockedBackstories))
		}
		previousUnlocks = len(state.UnlockedBackstories)
	}
}
