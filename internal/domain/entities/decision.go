package entities

// DecisionImportance grades how consequential a decision is.
type DecisionImportance string

const (
	ImportanceMinor       DecisionImportance = "minor"
	ImportanceModerate    DecisionImportance = "moderate"
	ImportanceSignificant DecisionImportance = "significant"
)

// DecisionOption is a single choice offered to the player.
type DecisionOption struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Impact string `json:"impact,omitempty"`
}

// Decision is a structured player choice: a prompt plus an ordered list of
// options. At most one decision may be presented (awaiting a choice) at a
// time across the pipeline's lifetime.
type Decision struct {
	ID          string             `json:"id"`
	Prompt      string             `json:"prompt"`
	Options     []DecisionOption   `json:"options"`
	Context     string             `json:"context,omitempty"`
	Importance  DecisionImportance `json:"importance"`
	Characters  []string           `json:"characters,omitempty"`
	AIGenerated bool               `json:"ai_generated"`
	TimestampMs int64              `json:"timestamp_ms"`
}

// Option returns the option with the given id, or nil if absent.
func (d *Decision) Option(id string) *DecisionOption {
	for i := range d.Options {
		if d.Options[i].ID == id {
			return &d.Options[i]
		}
	}
	return nil
}

// DecisionRecord is an append-only history entry tying a presented decision
// to the option the player selected and the narrative outcome.
type DecisionRecord struct {
	DecisionID       string `json:"decision_id"`
	Prompt           string `json:"prompt"`
	SelectedOptionID string `json:"selected_option_id"`
	SelectedText     string `json:"selected_text"`
	NarrativeOutcome string `json:"narrative_outcome"`
	TimestampMs      int64  `json:"timestamp_ms"`
}

// GenerationMode selects how decisions are produced.
type GenerationMode string

const (
	// ModeTemplate never calls the language model.
	ModeTemplate GenerationMode = "template"
	// ModeModel calls the language model and surfaces its errors.
	ModeModel GenerationMode = "model"
	// ModeHybrid calls the model first and falls back to templates on
	// failure or low quality.
	ModeHybrid GenerationMode = "hybrid"
)

// IsValid reports whether the mode is one of the known modes.
func (m GenerationMode) IsValid() bool {
	switch m {
	case ModeTemplate, ModeModel, ModeHybrid:
		return true
	}
	return false
}
