package services

import (
	"fmt"
	"strings"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

// Quality gate defaults.
const (
	DefaultMinOptions   = 2
	DefaultMaxOptions   = 4
	DefaultMinPromptLen = 10
	DefaultMaxPromptLen = 600
	duplicateSimilarity = 0.8
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "at": {}, "away": {}, "before": {}, "but": {},
	"do": {}, "does": {}, "for": {}, "from": {}, "has": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "out": {}, "the": {},
	"then": {}, "to": {}, "toward": {}, "what": {}, "while": {}, "with": {},
	"you": {}, "your": {},
}

// QualityConfig bounds for assessing generated decisions.
type QualityConfig struct {
	MinOptions   int
	MaxOptions   int
	MinPromptLen int
	MaxPromptLen int
}

// Assessment is the outcome of a quality check.
type Assessment struct {
	Pass   bool
	Issues []string
}

// QualityGate scores a generated decision for completeness, option
// diversity, and relevance to the supplied context. All checks are
// keyword-level heuristics, deliberately deterministic so gating behavior is
// testable without a model.
type QualityGate struct {
	cfg QualityConfig
}

// NewQualityGate creates a gate, filling in defaults for zero config values.
func NewQualityGate(cfg QualityConfig) *QualityGate {
	if cfg.MinOptions <= 0 {
		cfg.MinOptions = DefaultMinOptions
	}
	if cfg.MaxOptions <= 0 {
		cfg.MaxOptions = DefaultMaxOptions
	}
	if cfg.MinPromptLen <= 0 {
		cfg.MinPromptLen = DefaultMinPromptLen
	}
	if cfg.MaxPromptLen <= 0 {
		cfg.MaxPromptLen = DefaultMaxPromptLen
	}
	return &QualityGate{cfg: cfg}
}

// Assess checks the decision against every gate rule and collects all issues
// rather than stopping at the first, so rejections are diagnosable.
func (g *QualityGate) Assess(decision entities.Decision, contextText string) Assessment {
	var issues []string

	promptLen := len(strings.TrimSpace(decision.Prompt))
	if promptLen < g.cfg.MinPromptLen {
		issues = append(issues, fmt.Sprintf("prompt too short (%d < %d chars)", promptLen, g.cfg.MinPromptLen))
	}
	if promptLen > g.cfg.MaxPromptLen {
		issues = append(issues, fmt.Sprintf("prompt too long (%d > %d chars)", promptLen, g.cfg.MaxPromptLen))
	}

	if n := len(decision.Options); n < g.cfg.MinOptions || n > g.cfg.MaxOptions {
		issues = append(issues, fmt.Sprintf("option count %d outside [%d, %d]", n, g.cfg.MinOptions, g.cfg.MaxOptions))
	}

	issues = append(issues, duplicateIssues(decision.Options)...)

	if issue := relevanceIssue(decision, contextText); issue != "" {
		issues = append(issues, issue)
	}

	for i, opt := range decision.Options {
		if strings.TrimSpace(opt.Text) == "" {
			issues = append(issues, fmt.Sprintf("option %d has empty text", i+1))
		}
	}

	return Assessment{Pass: len(issues) == 0, Issues: issues}
}

// duplicateIssues flags pairs of options whose normalized token sets are
// near-identical.
func duplicateIssues(options []entities.DecisionOption) []string {
	var issues []string
	for i := 0; i < len(options); i++ {
		for j := i + 1; j < len(options); j++ {
			a := keywords(options[i].Text)
			b := keywords(options[j].Text)
			if jaccard(a, b) >= duplicateSimilarity {
				issues = append(issues, fmt.Sprintf("options %d and %d are near-duplicates", i+1, j+1))
			}
		}
	}
	return issues
}

// relevanceIssue applies the keyword-overlap heuristic: at least one option,
// or the prompt itself, must share a keyword with the supplied context. An
// empty context cannot anchor the check and passes trivially.
func relevanceIssue(decision entities.Decision, contextText string) string {
	contextWords := keywords(contextText)
	if len(contextWords) == 0 {
		return ""
	}

	anchor := keywords(decision.Prompt)
	for _, opt := range decision.Options {
		for w := range keywords(opt.Text) {
			anchor[w] = struct{}{}
		}
	}
	for w := range anchor {
		if _, ok := contextWords[w]; ok {
			return ""
		}
	}
	return "no option or prompt keyword overlaps the supplied context"
}

// keywords returns the non-stopword token set of a text.
func keywords(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for w := range wordSet(normalizeContent(text)) {
		if _, stop := stopwords[w]; stop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}
