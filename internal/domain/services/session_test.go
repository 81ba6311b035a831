package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/mocks"
)

func newTemplateSession(t *testing.T, store *mocks.Store) *Session {
	t.Helper()
	logger := zap.NewNop()

	var opts []FactServiceOption
	if store != nil {
		opts = append(opts, WithStore(store))
	}
	facts := NewFactService(logger, opts...)

	generator, err := NewGenerator(GeneratorConfig{Mode: entities.ModeTemplate}, nil, NewQualityGate(QualityConfig{}), logger)
	require.NoError(t, err)

	return NewSession(
		SessionConfig{},
		facts,
		NewExtractor(),
		NewAssembler(NewScorer(), nil, nil, logger),
		NewDetector(DetectorConfig{}),
		generator,
		NewHistory(store, logger),
		nil,
		logger,
	)
}

func TestHandleNarrativeExtractsWithoutDecision(t *testing.T) {
	session := newTemplateSession(t, nil)

	outcome, err := session.HandleNarrative(context.Background(), entities.Situation{
		NarrativeText: "Mira is a healer from the coastal villages of the south.",
	}, HandleOptions{})
	require.NoError(t, err)

	require.Len(t, outcome.FactsAdded, 1)
	assert.Equal(t, entities.CategoryCharacter, outcome.FactsAdded[0].Category)
	assert.Nil(t, outcome.Decision, "a quiet line does not warrant a choice")
	assert.Less(t, outcome.Detection.Score, DefaultThreshold)
	assert.Len(t, session.Facts().ValidFacts(), 1)
}

func TestHandleNarrativeExplicitDecisionPoint(t *testing.T) {
	session := newTemplateSession(t, nil)

	outcome, err := session.HandleNarrative(context.Background(), entities.Situation{
		CurrentLocation:    "Thornhaven",
		NarrativeText:      "The council falls silent, waiting for the party's answer.",
		StoryDecisionPoint: true,
	}, HandleOptions{})
	require.NoError(t, err)

	require.NotNil(t, outcome.Decision)
	assert.GreaterOrEqual(t, len(outcome.Decision.Options), DefaultMinOptions)
	assert.True(t, session.History().HasActive())
}

func TestHandleNarrativeSkipsWhileDecisionPending(t *testing.T) {
	session := newTemplateSession(t, nil)
	ctx := context.Background()
	situation := entities.Situation{
		CurrentLocation:    "Thornhaven",
		NarrativeText:      "A choice hangs in the air over the council chamber.",
		StoryDecisionPoint: true,
	}

	first, err := session.HandleNarrative(ctx, situation, HandleOptions{})
	require.NoError(t, err)
	require.NotNil(t, first.Decision)

	// Second event while the first decision awaits a choice.
	second, err := session.HandleNarrative(ctx, situation, HandleOptions{Force: true})
	require.NoError(t, err)
	assert.Nil(t, second.Decision, "at most one decision is presented at a time")

	active := session.History().Active()
	require.NotNil(t, active)
	assert.Equal(t, first.Decision.ID, active.ID)
}

func TestRecordChoiceCompletesCycle(t *testing.T) {
	store := &mocks.Store{}
	session := newTemplateSession(t, store)
	ctx := context.Background()

	outcome, err := session.HandleNarrative(ctx, entities.Situation{
		CurrentLocation:    "Thornhaven",
		NarrativeText:      "The envoy demands an answer before nightfall arrives.",
		StoryDecisionPoint: true,
	}, HandleOptions{})
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)

	option := outcome.Decision.Options[0]
	record, err := session.RecordChoice(ctx, outcome.Decision.ID, option.ID,
		"Mira is a healer from the coastal villages of the south.")
	require.NoError(t, err)
	assert.Equal(t, option.Text, record.SelectedText)

	assert.False(t, session.History().HasActive())
	require.Len(t, store.Records, 1)

	// The outcome narrative feeds the world model too.
	assert.NotEmpty(t, session.Facts().ValidFacts())

	// A new decision can be presented afterwards.
	next, err := session.HandleNarrative(ctx, entities.Situation{
		CurrentLocation:    "Thornhaven",
		NarrativeText:      "Another messenger arrives bearing a sealed letter.",
		StoryDecisionPoint: true,
	}, HandleOptions{})
	require.NoError(t, err)
	assert.NotNil(t, next.Decision)
}

func TestForceBypassesGates(t *testing.T) {
	session := newTemplateSession(t, nil)

	outcome, err := session.HandleNarrative(context.Background(), entities.Situation{
		CurrentLocation: "the crossroads",
		NarrativeText:   "The road forks quietly under the afternoon sun.",
	}, HandleOptions{Force: true})
	require.NoError(t, err)
	assert.NotNil(t, outcome.Decision)
}

func TestAbandonClearsPendingDecision(t *testing.T) {
	session := newTemplateSession(t, nil)
	ctx := context.Background()

	outcome, err := session.HandleNarrative(ctx, entities.Situation{
		NarrativeText:      "Everything waits on the party's next word tonight.",
		StoryDecisionPoint: true,
	}, HandleOptions{})
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)

	session.Abandon()
	assert.False(t, session.History().HasActive())

	_, err = session.RecordChoice(ctx, outcome.Decision.ID, outcome.Decision.Options[0].ID, "")
	assert.True(t, entities.IsNotFound(err), "abandoned decisions cannot be recorded")
}

func TestHandleNarrativeCombatStaysQuiet(t *testing.T) {
	session := newTemplateSession(t, nil)

	outcome, err := session.HandleNarrative(context.Background(), entities.Situation{
		NarrativeText:      "Kael parries the blade and strikes back hard at the raider.",
		CombatActive:       true,
		StoryDecisionPoint: true,
	}, HandleOptions{})
	require.NoError(t, err)

	assert.Nil(t, outcome.Decision, "combat suppresses decision presentation")
	assert.LessOrEqual(t, outcome.Detection.Score, combatScoreCeiling)
}

func TestHandleNarrativeExtraElements(t *testing.T) {
	session := newTemplateSession(t, nil)

	extra := entities.ContextElement{
		ID:         "var-quest",
		Type:       entities.ElementVariable,
		Content:    "quest_stage = 3",
		Importance: 8,
	}
	outcome, err := session.HandleNarrative(context.Background(), entities.Situation{
		NarrativeText:      "The party stands before the council at last.",
		StoryDecisionPoint: true,
	}, HandleOptions{Extra: []entities.ContextElement{extra}})
	require.NoError(t, err)
	assert.NotNil(t, outcome.Decision)
}

// holdingLLM blocks inside Generate until released, so a test can supersede
// the generation while the model call is still in flight.
type holdingLLM struct {
	startOnce sync.Once
	started   chan struct{}
	release   chan struct{}
}

func (l *holdingLLM) Generate(ctx context.Context, prompt string) (string, error) {
	l.startOnce.Do(func() { close(l.started) })
	<-l.release
	return validModelResponse, nil
}

func TestHandleNarrativeDiscardsSupersededGeneration(t *testing.T) {
	logger := zap.NewNop()
	llm := &holdingLLM{started: make(chan struct{}), release: make(chan struct{})}
	generator, err := NewGenerator(GeneratorConfig{Mode: entities.ModeHybrid}, llm, NewQualityGate(QualityConfig{}), logger)
	require.NoError(t, err)

	session := NewSession(
		SessionConfig{},
		NewFactService(logger),
		NewExtractor(),
		NewAssembler(NewScorer(), nil, nil, logger),
		NewDetector(DetectorConfig{}),
		generator,
		NewHistory(nil, logger),
		nil,
		logger,
	)

	results := make(chan NarrativeOutcome, 1)
	go func() {
		outcome, handleErr := session.HandleNarrative(context.Background(), entities.Situation{
			CurrentLocation:    "the gate",
			NarrativeText:      "An envoy waits at the gate for the party's answer.",
			StoryDecisionPoint: true,
		}, HandleOptions{Force: true})
		assert.NoError(t, handleErr)
		results <- outcome
	}()

	<-llm.started
	session.Abandon()
	close(llm.release)

	outcome := <-results
	assert.Nil(t, outcome.Decision, "a superseded generation must not reach the player")
	assert.False(t, session.History().HasActive())

	// The pipeline is fully usable again after discarding the stale result.
	followUp, err := session.HandleNarrative(context.Background(), entities.Situation{
		CurrentLocation:    "the gate",
		NarrativeText:      "The envoy clears his throat once more.",
		StoryDecisionPoint: true,
	}, HandleOptions{Force: true})
	require.NoError(t, err)
	require.NotNil(t, followUp.Decision)
	assert.True(t, session.History().HasActive())
}
