package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

var (
	reNumber      = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	reYear        = regexp.MustCompile(`\b\d{3,4}\b`)
	reNonWord     = regexp.MustCompile(`[^a-z0-9 ]+`)
	reWhereabouts = regexp.MustCompile(`(?i)\b([A-Z][\w']*)\s+(?:is|was|lives|resides|stays)\s+(?:in|at)\s+(?:the\s+)?([\w' ]+)`)
	reOwnership   = regexp.MustCompile(`(?i)\b(?:belongs to|is owned by|is held by|is carried by)\s+([\w']+)`)
)

// vitalStates are mutually exclusive character conditions.
var vitalStates = [][]string{
	{"is alive", "survived"},
	{"is dead", "died", "was killed", "has fallen"},
}

// DetectConflicts compares a candidate fact against existing valid facts in
// the same category and returns zero or more conflict records. Detection is
// purely heuristic: tag overlap gates the comparison, then equal-content
// duplicates, numeric and date mismatches, and category-specific mutually
// exclusive patterns are checked.
func (s *FactService) DetectConflicts(candidate entities.FactDraft) []entities.Conflict {
	var conflicts []entities.Conflict

	candNorm := normalizeContent(candidate.Content)
	candWords := wordSet(candNorm)

	for _, id := range s.byCategory[candidate.Category] {
		existing, ok := s.facts[id]
		if !ok || !existing.IsValid {
			continue
		}

		existNorm := normalizeContent(existing.Content)

		// Identical statements: a confidence mismatch means the world
		// model is being re-asserted with different certainty; equal
		// confidence is a plain duplicate.
		if candNorm == existNorm {
			kind := entities.ConflictDuplicate
			reason := "restates an existing fact"
			if clampScale(candidate.Confidence) != existing.Confidence {
				kind = entities.ConflictContradiction
				reason = fmt.Sprintf("same statement with confidence %d vs %d",
					clampScale(candidate.Confidence), existing.Confidence)
			}
			conflicts = append(conflicts, entities.Conflict{
				ExistingFactID: existing.ID,
				Kind:           kind,
				Reason:         reason,
			})
			continue
		}

		// Unrelated statements are only comparable when they share tags
		// or most of their non-numeric wording.
		overlap := overlapCount(candidate.Tags, existing.Tags)
		similarity := jaccard(candWords, wordSet(existNorm))
		if overlap == 0 && similarity < 0.5 {
			continue
		}

		if reason := numericMismatch(candidate.Content, existing.Content, similarity); reason != "" {
			conflicts = append(conflicts, entities.Conflict{
				ExistingFactID: existing.ID,
				Kind:           entities.ConflictContradiction,
				Reason:         reason,
			})
			continue
		}

		if reason := categoryMismatch(candidate.Category, candidate.Content, existing.Content); reason != "" {
			conflicts = append(conflicts, entities.Conflict{
				ExistingFactID: existing.ID,
				Kind:           entities.ConflictContradiction,
				Reason:         reason,
			})
		}
	}

	return conflicts
}

// ResolveConflicts applies the default resolution policy to a candidate
// draft: duplicates refresh the existing fact instead of adding a new one;
// contradictions prefer the higher confidence and invalidate the loser,
// keeping both valid on a tie. Every resolution is audit-logged. The added
// fact (or nil when the candidate was dropped as a duplicate) is returned.
func (s *FactService) ResolveConflicts(ctx context.Context, candidate entities.FactDraft, conflicts []entities.Conflict) (*entities.Fact, error) {
	for _, c := range conflicts {
		if c.Kind == entities.ConflictDuplicate {
			s.TouchReference(c.ExistingFactID)
			s.audit(ctx, "conflict_duplicate_skipped", c.ExistingFactID, map[string]any{
				"candidate": candidate.Content,
			})
			s.logger.Debug("duplicate fact skipped",
				zap.String("existing_fact_id", c.ExistingFactID),
				zap.String("reason", c.Reason))
			return nil, nil
		}
	}

	fact, err := s.AddFact(ctx, candidate)
	if err != nil {
		return nil, err
	}

	for _, c := range conflicts {
		existing, ok := s.facts[c.ExistingFactID]
		if !ok {
			continue
		}

		switch {
		case fact.Confidence > existing.Confidence:
			if err := s.InvalidateFact(ctx, existing.ID); err != nil {
				return nil, fmt.Errorf("invalidating losing fact: %w", err)
			}
			s.auditResolution(ctx, fact.ID, existing.ID, "new fact wins", c.Reason)
		case fact.Confidence < existing.Confidence:
			if err := s.InvalidateFact(ctx, fact.ID); err != nil {
				return nil, fmt.Errorf("invalidating losing fact: %w", err)
			}
			s.auditResolution(ctx, existing.ID, fact.ID, "existing fact wins", c.Reason)
		default:
			s.auditResolution(ctx, "", "", "equal confidence, both kept", c.Reason)
		}
	}

	updated := *s.facts[fact.ID]
	return &updated, nil
}

func (s *FactService) auditResolution(ctx context.Context, winnerID, loserID, outcome, reason string) {
	s.logger.Info("fact conflict resolved",
		zap.String("winner", winnerID),
		zap.String("loser", loserID),
		zap.String("outcome", outcome),
		zap.String("reason", reason))
	s.audit(ctx, "conflict_resolved", winnerID, map[string]any{
		"loser":   loserID,
		"outcome": outcome,
		"reason":  reason,
	})
}

// numericMismatch reports differing numbers or years between two otherwise
// similar statements.
func numericMismatch(a, b string, similarity float64) string {
	numsA := reNumber.FindAllString(a, -1)
	numsB := reNumber.FindAllString(b, -1)
	if len(numsA) == 0 || len(numsB) == 0 {
		return ""
	}

	// Only similar statements can disagree about a quantity; compare the
	// wording with the numbers stripped out.
	residueA := wordSet(normalizeContent(reNumber.ReplaceAllString(a, "")))
	residueB := wordSet(normalizeContent(reNumber.ReplaceAllString(b, "")))
	if jaccard(residueA, residueB) < 0.6 && similarity < 0.6 {
		return ""
	}

	if !sameStringSet(numsA, numsB) {
		if reYear.MatchString(a) && reYear.MatchString(b) {
			return fmt.Sprintf("date mismatch: %v vs %v", numsA, numsB)
		}
		return fmt.Sprintf("numeric mismatch: %v vs %v", numsA, numsB)
	}
	return ""
}

// categoryMismatch applies mutually exclusive category-specific patterns.
func categoryMismatch(category entities.FactCategory, a, b string) string {
	switch category {
	case entities.CategoryCharacter:
		stateA := vitalState(a)
		stateB := vitalState(b)
		if stateA >= 0 && stateB >= 0 && stateA != stateB {
			return "mutually exclusive character state (alive vs dead)"
		}
	case entities.CategoryLocation:
		subjA, placeA := whereabouts(a)
		subjB, placeB := whereabouts(b)
		if subjA != "" && strings.EqualFold(subjA, subjB) && !strings.EqualFold(placeA, placeB) {
			return fmt.Sprintf("%s placed in %q and %q", subjA, placeA, placeB)
		}
	case entities.CategoryItem:
		ownerA := owner(a)
		ownerB := owner(b)
		if ownerA != "" && ownerB != "" && !strings.EqualFold(ownerA, ownerB) {
			return fmt.Sprintf("conflicting ownership: %q vs %q", ownerA, ownerB)
		}
	}
	return ""
}

func vitalState(content string) int {
	lower := strings.ToLower(content)
	for state, phrases := range vitalStates {
		for _, phrase := range phrases {
			if strings.Contains(lower, phrase) {
				return state
			}
		}
	}
	return -1
}

func whereabouts(content string) (subject, place string) {
	m := reWhereabouts.FindStringSubmatch(content)
	if m == nil {
		return "", ""
	}
	return m[1], strings.TrimSpace(m[2])
}

func owner(content string) string {
	m := reOwnership.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return m[1]
}

func normalizeContent(content string) string {
	lower := strings.ToLower(strings.TrimSpace(content))
	lower = reNonWord.ReplaceAllString(lower, "")
	return strings.Join(strings.Fields(lower), " ")
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
		if seen[s] < 0 {
			return false
		}
	}
	return true
}

// overlapCount returns how many strings the two slices share,
// case-insensitively.
func overlapCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[strings.ToLower(s)] = struct{}{}
	}
	count := 0
	for _, s := range b {
		if _, ok := set[strings.ToLower(s)]; ok {
			count++
		}
	}
	return count
}
