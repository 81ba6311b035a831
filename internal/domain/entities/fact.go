// Package entities contains core domain data structures.
package entities

import "time"

// FactCategory represents the kind of world truth a fact records.
type FactCategory string

// Built-in fact categories.
const (
	CategoryCharacter FactCategory = "character"
	CategoryLocation  FactCategory = "location"
	CategoryHistory   FactCategory = "history"
	CategoryItem      FactCategory = "item"
	CategoryConcept   FactCategory = "concept"
)

// FactCategories lists every valid category in a stable order.
var FactCategories = []FactCategory{
	CategoryCharacter,
	CategoryLocation,
	CategoryHistory,
	CategoryItem,
	CategoryConcept,
}

// IsValid reports whether the category is one of the built-in categories.
func (c FactCategory) IsValid() bool {
	for _, valid := range FactCategories {
		if c == valid {
			return true
		}
	}
	return false
}

// Fact represents a single versioned world-truth statement. Facts are never
// hard-deleted; contradicted or retconned facts are invalidated and retained.
type Fact struct {
	ID               string       `json:"id"`
	Content          string       `json:"content"`
	Category         FactCategory `json:"category"`
	Importance       int          `json:"importance"` // 1-10
	Confidence       int          `json:"confidence"` // 1-10
	Tags             []string     `json:"tags,omitempty"`
	RelatedFactIDs   []string     `json:"related_fact_ids,omitempty"`
	IsValid          bool         `json:"is_valid"`
	Version          int          `json:"version"`
	Embedding        []float32    `json:"embedding,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	LastReferencedAt time.Time    `json:"last_referenced_at"`
}

// HasTag reports whether the fact carries the given tag.
func (f *Fact) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FactDraft is the input for creating a fact, produced by extraction or
// explicit authoring. System-assigned fields (id, version, timestamps) are
// filled in by the fact service.
type FactDraft struct {
	Content    string       `json:"content"`
	Category   FactCategory `json:"category"`
	Importance int          `json:"importance"`
	Confidence int          `json:"confidence"`
	Tags       []string     `json:"tags,omitempty"`
}

// FactUpdate carries a partial mutation for an existing fact. Nil fields are
// left untouched.
type FactUpdate struct {
	Content    *string  `json:"content,omitempty"`
	Importance *int     `json:"importance,omitempty"`
	Confidence *int     `json:"confidence,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	RelatedIDs []string `json:"related_fact_ids,omitempty"`
}

// ConflictKind distinguishes a true contradiction from a duplicate statement.
type ConflictKind string

const (
	// ConflictContradiction marks facts that cannot both be true.
	ConflictContradiction ConflictKind = "contradiction"
	// ConflictDuplicate marks facts that restate an existing fact.
	ConflictDuplicate ConflictKind = "duplicate"
)

// Conflict records a detected clash between a candidate fact and an existing
// valid fact in the same category.
type Conflict struct {
	ExistingFactID string       `json:"existing_fact_id"`
	Kind           ConflictKind `json:"kind"`
	Reason         string       `json:"reason"`
}
