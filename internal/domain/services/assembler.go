package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/ports"
)

// TokenEstimator approximates the token cost of a piece of text. Exact token
// semantics are a model detail, so the estimator is pluggable.
type TokenEstimator func(text string) int

// DefaultTokenEstimator uses the usual four-characters-per-token heuristic.
func DefaultTokenEstimator(text string) int {
	return (len(text) + 3) / 4
}

// historyElementID identifies the synthetic element carrying the narrative
// history through scoring and packing.
const historyElementID = "narrative-history"

// Assembler selects scored context elements under a token budget and
// produces a single formatted payload for the language model.
type Assembler struct {
	scorer     *Scorer
	summarizer ports.Summarizer
	estimate   TokenEstimator
	logger     *zap.Logger
}

// NewAssembler creates a new assembler. The summarizer may be nil, in which
// case over-budget history falls straight back to truncation.
func NewAssembler(scorer *Scorer, summarizer ports.Summarizer, estimate TokenEstimator, logger *zap.Logger) *Assembler {
	if estimate == nil {
		estimate = DefaultTokenEstimator
	}
	return &Assembler{
		scorer:     scorer,
		summarizer: summarizer,
		estimate:   estimate,
		logger:     logger,
	}
}

// Assemble ranks the candidates (plus the narrative history, condensed first
// if it alone would blow the budget), then greedily accepts elements in rank
// order while the running token estimate stays within budget. Packing stops
// at the first rejection rather than skipping ahead to smaller elements, so
// the output preserves one coherent priority ordering. Returns the formatted
// payload and the ids of the included elements.
func (a *Assembler) Assemble(ctx context.Context, candidates []entities.ContextElement, situation entities.Situation, tokenBudget int, nowMs int64) (string, []string) {
	all := append([]entities.ContextElement(nil), candidates...)

	if situation.NarrativeText != "" {
		all = append(all, a.historyElement(ctx, situation.NarrativeText, tokenBudget, nowMs))
	}

	ranked := a.scorer.Rank(all, situation, nowMs)

	var (
		sections []string
		included []string
		used     int
	)
	for _, el := range ranked {
		section := formatElement(el)
		cost := a.estimate(section)
		if used+cost > tokenBudget {
			break
		}
		used += cost
		sections = append(sections, section)
		included = append(included, el.ID)
	}

	return strings.Join(sections, "\n\n"), included
}

// historyElement wraps the raw narrative history as a high-importance story
// point. History that alone exceeds the budget is summarized first, never
// silently truncated; only if the summarizer itself fails do we fall back to
// dropping the oldest text, always keeping the most recent.
func (a *Assembler) historyElement(ctx context.Context, history string, tokenBudget int, nowMs int64) entities.ContextElement {
	content := history
	if a.estimate(history) > tokenBudget {
		// Aim for half the budget so summarized history leaves room
		// for lore and past decisions.
		targetChars := tokenBudget * 2
		if a.summarizer != nil {
			summary, err := a.summarizer.Summarize(ctx, history, targetChars)
			if err != nil {
				a.logger.Warn("summarizing narrative history",
					zap.String("kind", string(entities.ServiceKind(err))),
					zap.Error(err))
				content = truncateOldest(history, targetChars)
			} else {
				content = summary
			}
		} else {
			content = truncateOldest(history, targetChars)
		}
	}

	return entities.ContextElement{
		ID:          historyElementID,
		Type:        entities.ElementStoryPoint,
		Content:     content,
		Importance:  10,
		TimestampMs: nowMs,
	}
}

// truncateOldest keeps the tail of the text, cutting forward to the next
// sentence boundary where possible.
func truncateOldest(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	tail := text[len(text)-maxChars:]
	if idx := strings.IndexAny(tail, ".!?"); idx >= 0 && idx+1 < len(tail) {
		trimmed := strings.TrimSpace(tail[idx+1:])
		if trimmed != "" {
			return trimmed
		}
	}
	return tail
}

func formatElement(el entities.ContextElement) string {
	label := strings.ToUpper(string(el.Type))
	if el.Location != "" {
		return fmt.Sprintf("[%s @ %s] %s", label, el.Location, el.Content)
	}
	return fmt.Sprintf("[%s] %s", label, el.Content)
}
