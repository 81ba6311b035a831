package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

func TestScore(t *testing.T) {
	nowMs := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	situation := entities.Situation{
		CurrentLocation:  "Thornhaven",
		ActiveCharacters: []string{"Kael", "Mira"},
		RecentTopics:     []string{"siege", "betrayal"},
	}
	scorer := NewScorer()

	tests := []struct {
		name    string
		element entities.ContextElement
		want    float64
	}{
		{
			name: "fresh element gets full recency bonus",
			element: entities.ContextElement{
				ID: "a", Importance: 5, TimestampMs: nowMs,
			},
			want: 15, // 5 + (10 - ln(1))
		},
		{
			name: "location match adds three",
			element: entities.ContextElement{
				ID: "b", Importance: 5, TimestampMs: nowMs, Location: "Thornhaven",
			},
			want: 18,
		},
		{
			name: "character and topic overlap",
			element: entities.ContextElement{
				ID: "c", Importance: 5, TimestampMs: nowMs,
				Characters: []string{"Kael"},
				Tags:       []string{"siege", "harvest"},
			},
			want: 18, // +1 character, +2 topic
		},
		{
			name: "non-matching location adds nothing",
			element: entities.ContextElement{
				ID: "d", Importance: 5, TimestampMs: nowMs, Location: "Vashtar",
			},
			want: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scorer.Score(tt.element, situation, nowMs), 0.001)
		})
	}
}

func TestRecencyBonusDecay(t *testing.T) {
	nowMs := int64(100 * 3600 * 1000)

	fresh := recencyBonus(nowMs, nowMs)
	hourOld := recencyBonus(nowMs-3600*1000, nowMs)
	dayOld := recencyBonus(nowMs-24*3600*1000, nowMs)

	assert.InDelta(t, 10, fresh, 0.001)
	assert.Greater(t, fresh, hourOld)
	assert.Greater(t, hourOld, dayOld)
	assert.GreaterOrEqual(t, dayOld, 0.0)

	// Ancient elements floor at zero instead of going negative.
	ancient := recencyBonus(0, int64(10*365*24)*3600*1000)
	assert.Equal(t, 0.0, ancient)

	// Future timestamps are treated as now.
	future := recencyBonus(nowMs+5000, nowMs)
	assert.InDelta(t, 10, future, 0.001)
}

func TestRankDeterministic(t *testing.T) {
	nowMs := int64(1000000)
	situation := entities.Situation{}
	scorer := NewScorer()

	elements := []entities.ContextElement{
		{ID: "low", Importance: 2, TimestampMs: nowMs},
		{ID: "high", Importance: 9, TimestampMs: nowMs},
		{ID: "tie-b", Importance: 5, TimestampMs: nowMs - 1000},
		{ID: "tie-a", Importance: 5, TimestampMs: nowMs - 1000},
		{ID: "tie-newer", Importance: 5, TimestampMs: nowMs - 500},
	}

	ranked := scorer.Rank(elements, situation, nowMs)
	require.Len(t, ranked, 5)
	assert.Equal(t, "high", ranked[0].ID)

	var ids []string
	for _, el := range ranked {
		ids = append(ids, el.ID)
	}
	// Equal importance orders by recency, then lower id.
	assert.Equal(t, []string{"high", "tie-newer", "tie-a", "tie-b", "low"}, ids)

	// Input order is untouched.
	assert.Equal(t, "low", elements[0].ID)
}
