package entities

// ElementType categorizes a unit of narrative information eligible for
// inclusion in a model prompt.
type ElementType string

const (
	ElementStoryPoint ElementType = "story_point"
	ElementDecision   ElementType = "decision"
	ElementLore       ElementType = "lore"
	ElementVariable   ElementType = "variable"
)

// ContextElement is an immutable candidate for context assembly. Elements are
// derived views over facts, decision records, and host-supplied story data;
// they are superseded by creating a new element, never mutated.
type ContextElement struct {
	ID          string      `json:"id"`
	Type        ElementType `json:"type"`
	Content     string      `json:"content"`
	Tags        []string    `json:"tags,omitempty"`
	Importance  int         `json:"importance"` // 1-10
	TimestampMs int64       `json:"timestamp_ms"`
	Location    string      `json:"location,omitempty"`
	Characters  []string    `json:"characters,omitempty"`
}

// Situation is a read-only snapshot of the game state supplied by the host.
// The engine never mutates it; it emits decisions and facts for the host to
// merge back.
type Situation struct {
	CurrentLocation      string   `json:"current_location"`
	ActiveCharacters     []string `json:"active_characters,omitempty"`
	RecentTopics         []string `json:"recent_topics,omitempty"`
	NarrativeText        string   `json:"narrative_text"`
	CombatActive         bool     `json:"combat_active"`
	StoryDecisionPoint   bool     `json:"story_decision_point"`
	LocationJustChanged  bool     `json:"location_just_changed"`
	LastDecisionAtMs     int64    `json:"last_decision_at_ms"`
	ElapsedSinceDecision int64    `json:"elapsed_since_decision_ms"`
}
