package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

// SituationKind keys the template library.
type SituationKind string

const (
	SituationCombatAdjacent SituationKind = "combat_adjacent"
	SituationLocationEntry  SituationKind = "location_entry"
	SituationGeneric        SituationKind = "generic"
)

// decisionTemplate is one fixed fallback decision. Placeholders: %[1]s is
// the current location, %[2]s the lead character.
type decisionTemplate struct {
	prompt     string
	importance entities.DecisionImportance
	options    []templateOption
}

type templateOption struct {
	text   string
	impact string
}

// Every template carries at least two options so the fallback can always
// satisfy the quality gate's minimum.
var decisionTemplates = map[SituationKind][]decisionTemplate{
	SituationCombatAdjacent: {
		{
			prompt:     "The fighting at %[1]s has died down for a moment. What does %[2]s do?",
			importance: entities.ImportanceModerate,
			options: []templateOption{
				{text: "Press the attack while the enemy regroups", impact: "escalates the fight"},
				{text: "Fall back and tend to the wounded", impact: "trades ground for safety"},
				{text: "Call out for a parley", impact: "opens a path to talk"},
			},
		},
		{
			prompt:     "Steel rings out near %[1]s. %[2]s has a heartbeat to act.",
			importance: entities.ImportanceSignificant,
			options: []templateOption{
				{text: "Stand firm and hold the line at %[1]s", impact: "risks injury, protects the others"},
				{text: "Slip away into cover and watch", impact: "safer, but the others fight alone"},
			},
		},
	},
	SituationLocationEntry: {
		{
			prompt:     "%[2]s arrives at %[1]s. The place is unfamiliar.",
			importance: entities.ImportanceModerate,
			options: []templateOption{
				{text: "Explore %[1]s carefully before going further", impact: "slower, reveals detail"},
				{text: "Seek out a local who knows %[1]s", impact: "faster answers, new contact"},
				{text: "Pass through %[1]s without stopping", impact: "keeps the pace, misses secrets"},
			},
		},
		{
			prompt:     "The road opens onto %[1]s ahead of %[2]s.",
			importance: entities.ImportanceMinor,
			options: []templateOption{
				{text: "Enter %[1]s openly", impact: "draws attention"},
				{text: "Scout the edge of %[1]s first", impact: "cautious approach"},
			},
		},
	},
	SituationGeneric: {
		{
			prompt:     "A quiet moment settles over %[1]s. %[2]s weighs the next move.",
			importance: entities.ImportanceMinor,
			options: []templateOption{
				{text: "Talk with the companions about what happened at %[1]s", impact: "builds trust"},
				{text: "Push on toward the next goal", impact: "keeps momentum"},
				{text: "Rest and recover before moving again", impact: "spends time, restores strength"},
			},
		},
		{
			prompt:     "Something about %[1]s nags at %[2]s. What matters most right now?",
			importance: entities.ImportanceModerate,
			options: []templateOption{
				{text: "Follow the nagging feeling about %[1]s", impact: "may uncover a thread"},
				{text: "Set it aside and focus on the task at hand", impact: "stays on course"},
			},
		},
	},
}

// TemplateLibrary produces decisions from a fixed library keyed by situation
// type. It has no external dependency and never fails, which makes it the
// terminal fallback of the generation pipeline.
type TemplateLibrary struct{}

// NewTemplateLibrary creates a new template library.
func NewTemplateLibrary() *TemplateLibrary {
	return &TemplateLibrary{}
}

// ClassifySituation maps a situation onto a template key.
func ClassifySituation(situation entities.Situation) SituationKind {
	switch {
	case situation.CombatActive || actionDensity(situation.NarrativeText) > 0.3:
		return SituationCombatAdjacent
	case situation.LocationJustChanged:
		return SituationLocationEntry
	default:
		return SituationGeneric
	}
}

// Generate selects a template for the situation and instantiates it. The
// variant index rotates with the number of decisions already presented so
// consecutive fallbacks do not repeat verbatim.
func (t *TemplateLibrary) Generate(situation entities.Situation, presented int, nowMs int64) entities.Decision {
	kind := ClassifySituation(situation)
	variants := decisionTemplates[kind]
	tmpl := variants[presented%len(variants)]

	location := situation.CurrentLocation
	if location == "" {
		location = "this place"
	}
	lead := "the party"
	if len(situation.ActiveCharacters) > 0 {
		lead = situation.ActiveCharacters[0]
	}

	options := make([]entities.DecisionOption, 0, len(tmpl.options))
	for _, opt := range tmpl.options {
		options = append(options, entities.DecisionOption{
			ID:     uuid.New().String(),
			Text:   fill(opt.text, location, lead),
			Impact: opt.impact,
		})
	}

	return entities.Decision{
		ID:          uuid.New().String(),
		Prompt:      fill(tmpl.prompt, location, lead),
		Options:     options,
		Context:     contextSnippet(situation.NarrativeText),
		Importance:  tmpl.importance,
		Characters:  append([]string(nil), situation.ActiveCharacters...),
		AIGenerated: false,
		TimestampMs: nowMs,
	}
}

// fill substitutes the location and lead character into a template string.
func fill(s, location, lead string) string {
	if !strings.Contains(s, "%[") {
		return s
	}
	return fmt.Sprintf(s, location, lead)
}

// contextSnippet keeps the tail of the narrative as decision context.
func contextSnippet(text string) string {
	const maxSnippet = 280
	text = strings.TrimSpace(text)
	if len(text) <= maxSnippet {
		return text
	}
	return truncateOldest(text, maxSnippet)
}
