package services

import (
	"regexp"
	"strings"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

// Extraction patterns, checked in order. The first matching category wins
// for a sentence.
var (
	reSentenceEnd = regexp.MustCompile(`([.!?])\s+`)
	reProperNoun  = regexp.MustCompile(`\b[A-Z][a-z][\w']*\b`)
	reDialogue    = regexp.MustCompile(`"[^"]*"|“[^”]*”`)

	reLocationStmt = regexp.MustCompile(`(?i)\b(?:arrive[sd]?\s+(?:at|in)|enter(?:s|ed)?|reach(?:es|ed)?|travel(?:s|ed)?\s+to|stands?\s+before)\s+(?:the\s+)?([A-Z][\w' ]+)`)
	reCharacterBe  = regexp.MustCompile(`\b([A-Z][a-z][\w']*)\s+(?:is|was|has been)\s+(?:a|an|the)?\s*([a-z][\w' ]+)`)
	reItemVerb     = regexp.MustCompile(`(?i)\b(?:picks?\s+up|takes?|receives?|finds?|carries|wields?|is given)\s+(?:a|an|the)?\s*([\w' ]+)`)
	reHistoryMark  = regexp.MustCompile(`(?i)\b(?:\d+\s+years?\s+ago|in\s+the\s+year\s+\d+|centuries?\s+ago|long\s+ago|ancient)\b`)
	reConceptMark  = regexp.MustCompile(`(?i)\b(?:is\s+known\s+as|is\s+called|means|is\s+forbidden|is\s+sacred|legend\s+(?:says|holds))\b`)
	reEmphasis     = regexp.MustCompile(`(?i)\b(?:important|crucial|vital|must|never|always|only)\b`)
)

// minSentenceLen filters out fragments that cannot carry a complete fact.
const minSentenceLen = 20

// Extractor derives fact drafts from generated narrative text using
// deterministic pattern heuristics. Extraction is advisory: it never fails,
// returning an empty slice for unparseable input.
type Extractor struct{}

// NewExtractor creates a new extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFromText scans the text sentence by sentence and produces zero or
// more fact drafts with a category guess and a confidence proportional to
// the statement's specificity.
func (e *Extractor) ExtractFromText(text string) []entities.FactDraft {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var drafts []entities.FactDraft
	for _, sentence := range splitSentences(text) {
		if len(sentence) < minSentenceLen {
			continue
		}
		// Spoken lines describe intent, not established world truth.
		if isMostlyDialogue(sentence) {
			continue
		}

		category, ok := guessCategory(sentence)
		if !ok {
			continue
		}

		drafts = append(drafts, entities.FactDraft{
			Content:    sentence,
			Category:   category,
			Importance: importanceOf(sentence),
			Confidence: specificityOf(sentence),
			Tags:       tagsOf(sentence, category),
		})
	}
	return drafts
}

// splitSentences breaks text on terminal punctuation followed by space.
func splitSentences(text string) []string {
	marked := reSentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

func isMostlyDialogue(sentence string) bool {
	quoted := reDialogue.FindAllString(sentence, -1)
	total := 0
	for _, q := range quoted {
		total += len(q)
	}
	return total*2 > len(sentence)
}

func guessCategory(sentence string) (entities.FactCategory, bool) {
	switch {
	case reHistoryMark.MatchString(sentence):
		return entities.CategoryHistory, true
	case reLocationStmt.MatchString(sentence):
		return entities.CategoryLocation, true
	case reItemVerb.MatchString(sentence):
		return entities.CategoryItem, true
	case reCharacterBe.MatchString(sentence):
		return entities.CategoryCharacter, true
	case reConceptMark.MatchString(sentence):
		return entities.CategoryConcept, true
	}
	return "", false
}

// specificityOf scores how concrete a statement is: numbers, named subjects,
// and a reasonable length all raise confidence.
func specificityOf(sentence string) int {
	confidence := 4
	if reNumber.MatchString(sentence) {
		confidence += 2
	}
	if len(reProperNoun.FindAllString(sentence, -1)) >= 2 {
		confidence += 2
	}
	if len(sentence) >= 40 && len(sentence) <= 160 {
		confidence++
	}
	return clampScale(confidence)
}

func importanceOf(sentence string) int {
	importance := 5
	if reEmphasis.MatchString(sentence) {
		importance += 2
	}
	return clampScale(importance)
}

// tagsOf derives tags from the category and any proper nouns in the sentence.
func tagsOf(sentence string, category entities.FactCategory) []string {
	tags := []string{string(category)}
	seen := map[string]struct{}{string(category): {}}
	for _, noun := range reProperNoun.FindAllString(sentence, -1) {
		tag := strings.ToLower(noun)
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
