package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

func validDecision() entities.Decision {
	return entities.Decision{
		ID:     "d1",
		Prompt: "The bridge is out. How does the party cross the river?",
		Options: []entities.DecisionOption{
			{ID: "o1", Text: "Swim across the cold river"},
			{ID: "o2", Text: "Search upstream for a ford"},
			{ID: "o3", Text: "Build a raft from the wreckage"},
		},
	}
}

func TestAssess(t *testing.T) {
	gate := NewQualityGate(QualityConfig{})

	tests := []struct {
		name      string
		mutate    func(*entities.Decision)
		context   string
		wantPass  bool
		wantIssue string
	}{
		{
			name:     "well-formed decision passes",
			mutate:   func(*entities.Decision) {},
			wantPass: true,
		},
		{
			name:      "prompt too short",
			mutate:    func(d *entities.Decision) { d.Prompt = "Go?" },
			wantIssue: "prompt too short",
		},
		{
			name:      "prompt too long",
			mutate:    func(d *entities.Decision) { d.Prompt = strings.Repeat("x", 601) },
			wantIssue: "prompt too long",
		},
		{
			name:      "single option rejected",
			mutate:    func(d *entities.Decision) { d.Options = d.Options[:1] },
			wantIssue: "option count",
		},
		{
			name: "too many options rejected",
			mutate: func(d *entities.Decision) {
				for i := 0; i < 5; i++ {
					d.Options = append(d.Options, entities.DecisionOption{ID: "x", Text: "A different new choice entirely"})
				}
			},
			wantIssue: "option count",
		},
		{
			name: "near-duplicate options rejected",
			mutate: func(d *entities.Decision) {
				d.Options = []entities.DecisionOption{
					{ID: "o1", Text: "Swim across the cold river"},
					{ID: "o2", Text: "Swim across the cold river now"},
				}
			},
			wantIssue: "near-duplicates",
		},
		{
			name:      "empty option text rejected",
			mutate:    func(d *entities.Decision) { d.Options[1].Text = "   " },
			wantIssue: "empty text",
		},
		{
			name:     "relevance passes when an option keyword overlaps the context",
			mutate:   func(*entities.Decision) {},
			context:  "[STORY_POINT] The river runs high after the storm.",
			wantPass: true,
		},
		{
			name:      "no keyword overlap with the context",
			mutate:    func(*entities.Decision) {},
			context:   "[LORE] Dragons nest in the volcanic peaks far north.",
			wantIssue: "no option or prompt keyword overlaps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := validDecision()
			tt.mutate(&decision)

			assessment := gate.Assess(decision, tt.context)
			if tt.wantPass {
				assert.True(t, assessment.Pass, "issues: %v", assessment.Issues)
				return
			}
			require.False(t, assessment.Pass)
			found := false
			for _, issue := range assessment.Issues {
				if strings.Contains(issue, tt.wantIssue) {
					found = true
				}
			}
			assert.True(t, found, "expected issue %q in %v", tt.wantIssue, assessment.Issues)
		})
	}
}

func TestAssessCollectsAllIssues(t *testing.T) {
	gate := NewQualityGate(QualityConfig{})

	assessment := gate.Assess(entities.Decision{
		Prompt:  "Go?",
		Options: []entities.DecisionOption{{ID: "o1", Text: ""}},
	}, "")

	assert.False(t, assessment.Pass)
	assert.GreaterOrEqual(t, len(assessment.Issues), 3, "short prompt, option count, and empty text all reported")
}

func TestQualityGateCustomBounds(t *testing.T) {
	gate := NewQualityGate(QualityConfig{MinOptions: 3, MaxOptions: 3})

	decision := validDecision()
	assert.True(t, gate.Assess(decision, "").Pass)

	decision.Options = decision.Options[:2]
	assert.False(t, gate.Assess(decision, "").Pass)
}
