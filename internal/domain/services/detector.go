package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

// Factor contribution bounds. Contributions are summed and clamped to [0,1];
// the explicit story-decision-point flag alone clears the default threshold,
// while active combat caps the score near zero regardless of anything else.
const (
	maxDialogueContribution = 0.20
	maxActionPenalty        = 0.20
	explicitFlagBoost       = 0.70
	locationChangedBoost    = 0.15
	combatPenalty           = 0.80
	combatScoreCeiling      = 0.10
	maxPacingContribution   = 0.25

	// DefaultThreshold is the default presentation threshold.
	DefaultThreshold = 0.65
	// DefaultMinDecisionInterval is the default hard gate between
	// presented decisions.
	DefaultMinDecisionInterval = 45 * time.Second
)

// pacingHalfLife controls how fast pacing pressure accumulates: at five
// minutes without a decision the contribution is at half its maximum.
const pacingHalfLife = 5 * time.Minute

var (
	reQuotedSpan = regexp.MustCompile(`"[^"]*"|“[^”]*”`)
	reSpeechVerb = regexp.MustCompile(`(?i)\b(?:says?|said|asks?|asked|replies|replied|whispers?|shouts?|demands?)\b`)
	reCombatVerb = regexp.MustCompile(`(?i)\b(?:attacks?|strikes?|slash(?:es)?|stabs?|parr(?:y|ies)|lunges?|bleeds?|wounds?|clash(?:es)?|fights?|swings?|fires?|dodges?)\b`)
)

// DetectorConfig holds the tunable detection surface.
type DetectorConfig struct {
	// Threshold is the minimum score at which a decision is presented.
	Threshold float64
	// MinDecisionInterval hard-gates presentation regardless of score,
	// unless the caller forces generation.
	MinDecisionInterval time.Duration
}

// Detector computes a 0-1 "this is a good moment for a choice" score from
// the latest narrative text and game situation.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a detector, filling in defaults for zero config values.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinDecisionInterval <= 0 {
		cfg.MinDecisionInterval = DefaultMinDecisionInterval
	}
	return &Detector{cfg: cfg}
}

// Threshold returns the configured presentation threshold.
func (d *Detector) Threshold() float64 {
	return d.cfg.Threshold
}

// Detect evaluates the situation and returns the score together with the
// per-factor contributions that produced it. The result is ephemeral.
func (d *Detector) Detect(situation entities.Situation) entities.DetectionResult {
	factors := map[string]float64{
		entities.FactorDialogue:     dialogueDensity(situation.NarrativeText) * maxDialogueContribution,
		entities.FactorAction:       -actionDensity(situation.NarrativeText) * maxActionPenalty,
		entities.FactorExplicitFlag: 0,
		entities.FactorLocation:     0,
		entities.FactorCombat:       0,
		entities.FactorPacing:       pacingPressure(situation.ElapsedSinceDecision) * maxPacingContribution,
	}
	if situation.StoryDecisionPoint {
		factors[entities.FactorExplicitFlag] = explicitFlagBoost
	}
	if situation.LocationJustChanged {
		factors[entities.FactorLocation] = locationChangedBoost
	}
	if situation.CombatActive {
		factors[entities.FactorCombat] = -combatPenalty
	}

	score := 0.0
	for _, contribution := range factors {
		score += contribution
	}
	score = clamp01(score)
	if situation.CombatActive && score > combatScoreCeiling {
		score = combatScoreCeiling
	}

	return entities.DetectionResult{Score: score, Factors: factors}
}

// ShouldPresent reports whether a detection result warrants presenting a
// decision. The minimum interval gate applies regardless of score, except
// when force is set (e.g. a manual test trigger).
func (d *Detector) ShouldPresent(result entities.DetectionResult, situation entities.Situation, force bool) bool {
	if force {
		return true
	}
	if result.Score < d.cfg.Threshold {
		return false
	}
	elapsed := time.Duration(situation.ElapsedSinceDecision) * time.Millisecond
	return situation.LastDecisionAtMs == 0 || elapsed >= d.cfg.MinDecisionInterval
}

// dialogueDensity estimates what share of the text is spoken dialogue.
func dialogueDensity(text string) float64 {
	if text == "" {
		return 0
	}
	quoted := 0
	for _, span := range reQuotedSpan.FindAllString(text, -1) {
		quoted += len(span)
	}
	density := float64(quoted) / float64(len(text))
	if reSpeechVerb.MatchString(text) {
		density += 0.2
	}
	return clamp01(density * 2)
}

// actionDensity estimates the share of combat and violence verbs.
func actionDensity(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	hits := len(reCombatVerb.FindAllString(text, -1))
	return clamp01(float64(hits) / float64(words) * 10)
}

// pacingPressure grows monotonically with time since the last decision,
// reaching half strength at pacingHalfLife.
func pacingPressure(elapsedMs int64) float64 {
	if elapsedMs <= 0 {
		return 0
	}
	elapsed := float64(elapsedMs)
	half := float64(pacingHalfLife / time.Millisecond)
	return clamp01(elapsed / (elapsed + half))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
