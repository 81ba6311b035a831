package services

import (
	"math"
	"sort"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

// Scorer assigns relevance scores to context elements for a given situation.
// Scoring is a deterministic pure function, evaluated per call.
type Scorer struct{}

// NewScorer creates a new scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes the relevance of an element to the situation:
// importance, plus a recency bonus that decays logarithmically with age,
// plus bonuses for matching location, active characters, and recent topics.
func (s *Scorer) Score(element entities.ContextElement, situation entities.Situation, nowMs int64) float64 {
	score := float64(element.Importance)
	score += recencyBonus(element.TimestampMs, nowMs)
	if element.Location != "" && element.Location == situation.CurrentLocation {
		score += 3
	}
	score += float64(overlapCount(element.Characters, situation.ActiveCharacters))
	score += 2 * float64(overlapCount(element.Tags, situation.RecentTopics))
	return score
}

// recencyBonus decays from 10 toward 0 as the element ages, floored at 0.
func recencyBonus(timestampMs, nowMs int64) float64 {
	ageMs := nowMs - timestampMs
	if ageMs < 0 {
		ageMs = 0
	}
	ageHours := float64(ageMs) / float64(3600*1000)
	bonus := 10 - math.Log(ageHours+1)
	if bonus < 0 {
		return 0
	}
	return bonus
}

// Rank sorts elements by score descending. Ties prefer the more recent
// timestamp, then the lower id, so ordering is fully reproducible.
func (s *Scorer) Rank(elements []entities.ContextElement, situation entities.Situation, nowMs int64) []entities.ContextElement {
	ranked := append([]entities.ContextElement(nil), elements...)
	scores := make(map[string]float64, len(ranked))
	for _, el := range ranked {
		scores[el.ID] = s.Score(el, situation, nowMs)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].ID], scores[ranked[j].ID]
		if si != sj {
			return si > sj
		}
		if ranked[i].TimestampMs != ranked[j].TimestampMs {
			return ranked[i].TimestampMs > ranked[j].TimestampMs
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}
