package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/mocks"
)

func TestAddFact(t *testing.T) {
	tests := []struct {
		name           string
		draft          entities.FactDraft
		wantErr        bool
		wantImportance int
		wantConfidence int
	}{
		{
			name: "valid draft gets defaults",
			draft: entities.FactDraft{
				Content:  "Kael carries the iron key",
				Category: entities.CategoryItem,
			},
			wantImportance: 5,
			wantConfidence: 5,
		},
		{
			name: "importance and confidence clamp to scale",
			draft: entities.FactDraft{
				Content:    "The citadel fell in 872",
				Category:   entities.CategoryHistory,
				Importance: 14,
				Confidence: -3,
			},
			wantImportance: 10,
			wantConfidence: 1,
		},
		{
			name:    "empty content rejected",
			draft:   entities.FactDraft{Category: entities.CategoryConcept},
			wantErr: true,
		},
		{
			name:    "empty category rejected",
			draft:   entities.FactDraft{Content: "something"},
			wantErr: true,
		},
		{
			name:    "unknown category rejected",
			draft:   entities.FactDraft{Content: "something", Category: "weather"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewFactService(zap.NewNop())
			fact, err := svc.AddFact(context.Background(), tt.draft)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, entities.IsValidation(err))
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, fact.ID)
			assert.Equal(t, tt.wantImportance, fact.Importance)
			assert.Equal(t, tt.wantConfidence, fact.Confidence)
			assert.Equal(t, 1, fact.Version)
			assert.True(t, fact.IsValid)
		})
	}
}

func TestAddFactRoundTrip(t *testing.T) {
	svc := NewFactService(zap.NewNop())

	fact, err := svc.AddFact(context.Background(), entities.FactDraft{
		Content:  "Mira is the keeper of the archive",
		Category: entities.CategoryCharacter,
		Tags:     []string{"mira", "archive"},
	})
	require.NoError(t, err)

	got, err := svc.GetFact(fact.ID)
	require.NoError(t, err)
	assert.Equal(t, fact.Content, got.Content)

	byCategory := svc.GetFactsByCategory(entities.CategoryCharacter)
	require.Len(t, byCategory, 1)
	assert.Equal(t, fact.ID, byCategory[0].ID)

	byTag := svc.GetFactsByTag("archive")
	require.Len(t, byTag, 1)
	assert.Equal(t, fact.ID, byTag[0].ID)

	_, err = svc.GetFact("nope")
	assert.True(t, entities.IsNotFound(err))
}

func TestUpdateFactVersionBump(t *testing.T) {
	svc := NewFactService(zap.NewNop())
	ctx := context.Background()

	fact, err := svc.AddFact(ctx, entities.FactDraft{
		Content:  "The bridge is guarded",
		Category: entities.CategoryLocation,
	})
	require.NoError(t, err)
	require.Equal(t, 1, fact.Version)

	// Changing content bumps the version.
	newContent := "The bridge is abandoned"
	updated, err := svc.UpdateFact(ctx, fact.ID, entities.FactUpdate{Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	// Re-asserting the same content does not.
	updated, err = svc.UpdateFact(ctx, fact.ID, entities.FactUpdate{Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	// Tag changes alone never bump the version.
	updated, err = svc.UpdateFact(ctx, fact.ID, entities.FactUpdate{Tags: []string{"bridge"}})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, []string{"bridge"}, updated.Tags)

	// A real confidence change does.
	conf := 9
	updated, err = svc.UpdateFact(ctx, fact.ID, entities.FactUpdate{Confidence: &conf})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version)
}

func TestUpdateFactErrors(t *testing.T) {
	svc := NewFactService(zap.NewNop())
	ctx := context.Background()

	_, err := svc.UpdateFact(ctx, "missing", entities.FactUpdate{})
	assert.True(t, entities.IsNotFound(err))

	fact, err := svc.AddFact(ctx, entities.FactDraft{
		Content:  "The gate is sealed",
		Category: entities.CategoryLocation,
	})
	require.NoError(t, err)

	empty := ""
	_, err = svc.UpdateFact(ctx, fact.ID, entities.FactUpdate{Content: &empty})
	assert.True(t, entities.IsValidation(err))
}

func TestValidityToggleIdempotent(t *testing.T) {
	store := &mocks.Store{}
	svc := NewFactService(zap.NewNop(), WithStore(store))
	ctx := context.Background()

	fact, err := svc.AddFact(ctx, entities.FactDraft{
		Content:  "Kael is alive",
		Category: entities.CategoryCharacter,
	})
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateFact(ctx, fact.ID))
	require.NoError(t, svc.InvalidateFact(ctx, fact.ID)) // no-op

	got, err := svc.GetFact(fact.ID)
	require.NoError(t, err)
	assert.False(t, got.IsValid)
	assert.Equal(t, 1, got.Version, "validity toggles never bump the version")

	require.NoError(t, svc.ValidateFact(ctx, fact.ID))
	require.NoError(t, svc.ValidateFact(ctx, fact.ID)) // no-op

	got, err = svc.GetFact(fact.ID)
	require.NoError(t, err)
	assert.True(t, got.IsValid)
	assert.Equal(t, 1, got.Version)

	// One invalidation and one revalidation snapshot beyond creation.
	var changeTypes []entities.ChangeType
	for _, v := range store.Versions {
		changeTypes = append(changeTypes, v.ChangeType)
	}
	assert.Equal(t, []entities.ChangeType{
		entities.ChangeCreation,
		entities.ChangeInvalidation,
		entities.ChangeRevalidation,
	}, changeTypes)

	assert.True(t, entities.IsNotFound(svc.InvalidateFact(ctx, "missing")))
}

func TestInvalidFactsExcludedFromQueries(t *testing.T) {
	svc := NewFactService(zap.NewNop())
	ctx := context.Background()

	kept, err := svc.AddFact(ctx, entities.FactDraft{
		Content:  "The tavern serves dwarven ale",
		Category: entities.CategoryLocation,
		Tags:     []string{"tavern"},
	})
	require.NoError(t, err)

	dropped, err := svc.AddFact(ctx, entities.FactDraft{
		Content:  "The tavern burned down",
		Category: entities.CategoryLocation,
		Tags:     []string{"tavern"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateFact(ctx, dropped.ID))

	valid := svc.ValidFacts()
	require.Len(t, valid, 1)
	assert.Equal(t, kept.ID, valid[0].ID)

	assert.Len(t, svc.GetFactsByCategory(entities.CategoryLocation), 1)
	assert.Len(t, svc.GetFactsByTag("tavern"), 1)

	// The invalidated fact is still retrievable directly.
	got, err := svc.GetFact(dropped.ID)
	require.NoError(t, err)
	assert.False(t, got.IsValid)
}

func TestValidFactsOrderStable(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	step := 0
	timeNow = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	defer func() { timeNow = time.Now }()

	svc := NewFactService(zap.NewNop())
	ctx := context.Background()

	var ids []string
	for _, content := range []string{
		"First fact about the realm",
		"Second fact about the realm",
		"Third fact about the realm",
	} {
		fact, err := svc.AddFact(ctx, entities.FactDraft{Content: content, Category: entities.CategoryConcept})
		require.NoError(t, err)
		ids = append(ids, fact.ID)
	}

	valid := svc.ValidFacts()
	require.Len(t, valid, 3)
	for i, fact := range valid {
		assert.Equal(t, ids[i], fact.ID)
	}
}

func TestTouchReference(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := base
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	svc := NewFactService(zap.NewNop())
	fact, err := svc.AddFact(context.Background(), entities.FactDraft{
		Content:  "The moon tide rises at dusk",
		Category: entities.CategoryConcept,
	})
	require.NoError(t, err)

	now = base.Add(time.Hour)
	svc.TouchReference(fact.ID)

	got, err := svc.GetFact(fact.ID)
	require.NoError(t, err)
	assert.Equal(t, now, got.LastReferencedAt)
	assert.Equal(t, base, got.UpdatedAt, "touching a reference is not an update")
}

func TestRestore(t *testing.T) {
	svc := NewFactService(zap.NewNop())
	svc.Restore([]entities.Fact{
		{
			ID:       "f1",
			Content:  "Mira guards the archive",
			Category: entities.CategoryCharacter,
			Tags:     []string{"mira"},
			IsValid:  true,
			Version:  3,
		},
		{
			ID:       "f2",
			Content:  "The archive burned",
			Category: entities.CategoryHistory,
			IsValid:  false,
		},
	})

	got, err := svc.GetFact("f1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
	assert.Len(t, svc.GetFactsByTag("mira"), 1)

	// Invalid facts restore but stay out of the valid set.
	assert.Len(t, svc.ValidFacts(), 1)

	// Restoring the same facts again is a no-op.
	svc.Restore([]entities.Fact{{ID: "f1", Category: entities.CategoryCharacter}})
	assert.Len(t, svc.GetFactsByCategory(entities.CategoryCharacter), 1)
}

func TestFactServicePersistsToStore(t *testing.T) {
	store := &mocks.Store{}
	svc := NewFactService(zap.NewNop(), WithStore(store))

	fact, err := svc.AddFact(context.Background(), entities.FactDraft{
		Content:  "The pass closes in winter",
		Category: entities.CategoryLocation,
	})
	require.NoError(t, err)

	require.Len(t, store.Facts, 1)
	assert.Equal(t, fact.ID, store.Facts[0].ID)
	require.Len(t, store.Versions, 1)
	assert.Equal(t, entities.ChangeCreation, store.Versions[0].ChangeType)
}
