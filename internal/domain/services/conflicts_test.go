package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/mocks"
)

func TestDetectConflicts(t *testing.T) {
	tests := []struct {
		name      string
		existing  entities.FactDraft
		candidate entities.FactDraft
		wantKind  entities.ConflictKind
		wantNone  bool
	}{
		{
			name: "identical content equal confidence is a duplicate",
			existing: entities.FactDraft{
				Content: "Kael guards the northern gate", Category: entities.CategoryCharacter, Confidence: 5,
			},
			candidate: entities.FactDraft{
				Content: "Kael guards the northern gate.", Category: entities.CategoryCharacter, Confidence: 5,
			},
			wantKind: entities.ConflictDuplicate,
		},
		{
			name: "identical content differing confidence is a contradiction",
			existing: entities.FactDraft{
				Content: "Kael guards the northern gate", Category: entities.CategoryCharacter, Confidence: 4,
			},
			candidate: entities.FactDraft{
				Content: "Kael guards the northern gate", Category: entities.CategoryCharacter, Confidence: 8,
			},
			wantKind: entities.ConflictContradiction,
		},
		{
			name: "numeric mismatch on similar statements",
			existing: entities.FactDraft{
				Content: "The garrison numbers 200 soldiers", Category: entities.CategoryConcept,
				Tags: []string{"garrison"},
			},
			candidate: entities.FactDraft{
				Content: "The garrison numbers 500 soldiers", Category: entities.CategoryConcept,
				Tags: []string{"garrison"},
			},
			wantKind: entities.ConflictContradiction,
		},
		{
			name: "alive versus dead character state",
			existing: entities.FactDraft{
				Content: "Seren is alive and hiding in the hills", Category: entities.CategoryCharacter,
				Tags: []string{"seren"},
			},
			candidate: entities.FactDraft{
				Content: "Seren was killed at the ford", Category: entities.CategoryCharacter,
				Tags: []string{"seren"},
			},
			wantKind: entities.ConflictContradiction,
		},
		{
			name: "same subject placed in two locations",
			existing: entities.FactDraft{
				Content: "Mira lives in the old lighthouse", Category: entities.CategoryLocation,
				Tags: []string{"mira"},
			},
			candidate: entities.FactDraft{
				Content: "Mira resides in the harbor district", Category: entities.CategoryLocation,
				Tags: []string{"mira"},
			},
			wantKind: entities.ConflictContradiction,
		},
		{
			name: "conflicting item ownership",
			existing: entities.FactDraft{
				Content: "The silver blade belongs to Kael", Category: entities.CategoryItem,
				Tags: []string{"blade"},
			},
			candidate: entities.FactDraft{
				Content: "The silver blade is owned by Seren", Category: entities.CategoryItem,
				Tags: []string{"blade"},
			},
			wantKind: entities.ConflictContradiction,
		},
		{
			name: "unrelated facts in the same category do not conflict",
			existing: entities.FactDraft{
				Content: "The eastern road floods every spring", Category: entities.CategoryConcept,
				Tags: []string{"road"},
			},
			candidate: entities.FactDraft{
				Content: "Dragons shun cold iron entirely", Category: entities.CategoryConcept,
				Tags: []string{"dragons"},
			},
			wantNone: true,
		},
		{
			name: "different categories are never compared",
			existing: entities.FactDraft{
				Content: "The garrison numbers 200 soldiers", Category: entities.CategoryConcept,
				Tags: []string{"garrison"},
			},
			candidate: entities.FactDraft{
				Content: "The garrison numbers 500 soldiers", Category: entities.CategoryHistory,
				Tags: []string{"garrison"},
			},
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewFactService(zap.NewNop())
			_, err := svc.AddFact(context.Background(), tt.existing)
			require.NoError(t, err)

			conflicts := svc.DetectConflicts(tt.candidate)
			if tt.wantNone {
				assert.Empty(t, conflicts)
				return
			}
			require.Len(t, conflicts, 1)
			assert.Equal(t, tt.wantKind, conflicts[0].Kind)
			assert.NotEmpty(t, conflicts[0].Reason)
		})
	}
}

func TestDetectConflictsIgnoresInvalidFacts(t *testing.T) {
	svc := NewFactService(zap.NewNop())
	ctx := context.Background()

	fact, err := svc.AddFact(ctx, entities.FactDraft{
		Content:  "Kael guards the northern gate",
		Category: entities.CategoryCharacter,
	})
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateFact(ctx, fact.ID))

	conflicts := svc.DetectConflicts(entities.FactDraft{
		Content:  "Kael guards the northern gate",
		Category: entities.CategoryCharacter,
	})
	assert.Empty(t, conflicts)
}

func TestResolveConflictsDuplicateSkipsCandidate(t *testing.T) {
	store := &mocks.Store{}
	svc := NewFactService(zap.NewNop(), WithStore(store))
	ctx := context.Background()

	draft := entities.FactDraft{
		Content:  "The well in the square is poisoned",
		Category: entities.CategoryLocation,
	}
	existing, err := svc.AddFact(ctx, draft)
	require.NoError(t, err)

	conflicts := svc.DetectConflicts(draft)
	require.Len(t, conflicts, 1)
	require.Equal(t, entities.ConflictDuplicate, conflicts[0].Kind)

	added, err := svc.ResolveConflicts(ctx, draft, conflicts)
	require.NoError(t, err)
	assert.Nil(t, added, "duplicate candidate must not create a new fact")
	assert.Len(t, svc.ValidFacts(), 1)

	// The skip is audit-logged against the surviving fact.
	entries, err := store.FindAuditLog(ctx, existing.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "conflict_duplicate_skipped", entries[len(entries)-1].Action)
}

func TestResolveConflictsHigherConfidenceWins(t *testing.T) {
	tests := []struct {
		name          string
		existingConf  int
		candidateConf int
		existingValid bool
		newValid      bool
	}{
		{name: "candidate wins", existingConf: 4, candidateConf: 8, existingValid: false, newValid: true},
		{name: "existing wins", existingConf: 8, candidateConf: 4, existingValid: true, newValid: false},
		{name: "tie keeps both", existingConf: 6, candidateConf: 6, existingValid: true, newValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewFactService(zap.NewNop())
			ctx := context.Background()

			existing, err := svc.AddFact(ctx, entities.FactDraft{
				Content:    "Seren is alive and well",
				Category:   entities.CategoryCharacter,
				Confidence: tt.existingConf,
				Tags:       []string{"seren"},
			})
			require.NoError(t, err)

			candidate := entities.FactDraft{
				Content:    "Seren died at the ford",
				Category:   entities.CategoryCharacter,
				Confidence: tt.candidateConf,
				Tags:       []string{"seren"},
			}
			conflicts := svc.DetectConflicts(candidate)
			require.NotEmpty(t, conflicts)

			added, err := svc.ResolveConflicts(ctx, candidate, conflicts)
			require.NoError(t, err)
			require.NotNil(t, added)

			gotExisting, err := svc.GetFact(existing.ID)
			require.NoError(t, err)
			gotNew, err := svc.GetFact(added.ID)
			require.NoError(t, err)

			assert.Equal(t, tt.existingValid, gotExisting.IsValid)
			assert.Equal(t, tt.newValid, gotNew.IsValid)
		})
	}
}

func TestNormalizeContent(t *testing.T) {
	assert.Equal(t, "kael guards the gate", normalizeContent("  Kael guards the gate.  "))
	assert.Equal(t, "the year 872", normalizeContent("The YEAR, 872!"))
	assert.Equal(t, "", normalizeContent("  ...  "))
}

func TestJaccard(t *testing.T) {
	a := wordSet("the gate is sealed")
	b := wordSet("the gate is open")
	assert.InDelta(t, 0.6, jaccard(a, b), 0.001)
	assert.Equal(t, 1.0, jaccard(nil, nil))
	assert.Equal(t, 0.0, jaccard(a, wordSet("nothing shared here")))
}
