package entities

// Detection factor names reported in DetectionResult.Factors.
const (
	FactorDialogue     = "dialogue_density"
	FactorAction       = "action_density"
	FactorExplicitFlag = "explicit_decision_point"
	FactorLocation     = "location_changed"
	FactorCombat       = "combat_active"
	FactorPacing       = "time_since_last_decision"
)

// DetectionResult is the ephemeral outcome of one detector evaluation: a
// normalized 0-1 score plus the per-factor contributions that produced it.
// It is computed per call and never persisted.
type DetectionResult struct {
	Score   float64            `json:"score"`
	Factors map[string]float64 `json:"factors"`
}
