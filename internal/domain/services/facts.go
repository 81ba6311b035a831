// Package services contains domain business logic.
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/ports"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// FactService owns world-fact records: creation, partial updates, validity
// toggling, category/tag indexing, and conflict detection. All mutations are
// expected to run on the single-writer timeline of the owning session; the
// service does no internal locking.
type FactService struct {
	facts      map[string]*entities.Fact
	byCategory map[entities.FactCategory][]string
	byTag      map[string][]string

	store    ports.Store    // optional durable persistence
	vectorDB ports.VectorDB // optional semantic recall mirror
	embedder ports.Embedder
	logger   *zap.Logger
}

// FactServiceOption configures optional collaborators on a FactService.
type FactServiceOption func(*FactService)

// WithStore enables durable persistence of facts, versions, and audit entries.
func WithStore(store ports.Store) FactServiceOption {
	return func(s *FactService) { s.store = store }
}

// WithRecallIndex mirrors valid facts into a vector index for semantic recall.
func WithRecallIndex(db ports.VectorDB, embedder ports.Embedder) FactServiceOption {
	return func(s *FactService) {
		s.vectorDB = db
		s.embedder = embedder
	}
}

// NewFactService creates a new fact service.
func NewFactService(logger *zap.Logger, opts ...FactServiceOption) *FactService {
	s := &FactService{
		facts:      make(map[string]*entities.Fact),
		byCategory: make(map[entities.FactCategory][]string),
		byTag:      make(map[string][]string),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads previously persisted facts into the in-memory indexes
// without re-persisting or auditing them. It is called once at startup.
func (s *FactService) Restore(facts []entities.Fact) {
	for i := range facts {
		fact := facts[i]
		if _, exists := s.facts[fact.ID]; exists {
			continue
		}
		s.facts[fact.ID] = &fact
		s.byCategory[fact.Category] = append(s.byCategory[fact.Category], fact.ID)
		for _, tag := range fact.Tags {
			s.byTag[tag] = append(s.byTag[tag], fact.ID)
		}
	}
}

// clampScale clamps a 1-10 scale value, treating the zero value as the
// middle of the scale.
func clampScale(v int) int {
	if v == 0 {
		return 5
	}
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// AddFact validates the draft, assigns system fields, and indexes the fact
// by category and each tag.
func (s *FactService) AddFact(ctx context.Context, draft entities.FactDraft) (*entities.Fact, error) {
	if draft.Content == "" {
		return nil, &entities.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if draft.Category == "" {
		return nil, &entities.ValidationError{Field: "category", Reason: "must not be empty"}
	}
	if !draft.Category.IsValid() {
		return nil, &entities.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", draft.Category)}
	}

	now := timeNow()
	fact := &entities.Fact{
		ID:               uuid.New().String(),
		Content:          draft.Content,
		Category:         draft.Category,
		Importance:       clampScale(draft.Importance),
		Confidence:       clampScale(draft.Confidence),
		Tags:             append([]string(nil), draft.Tags...),
		IsValid:          true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastReferencedAt: now,
	}

	s.facts[fact.ID] = fact
	s.byCategory[fact.Category] = append(s.byCategory[fact.Category], fact.ID)
	for _, tag := range fact.Tags {
		s.byTag[tag] = append(s.byTag[tag], fact.ID)
	}

	s.persist(ctx, fact, entities.ChangeCreation, "fact created")
	s.mirror(ctx, fact)

	copied := *fact
	return &copied, nil
}

// UpdateFact merges the partial update into an existing fact. The version is
// bumped only when content, importance, or confidence actually change.
func (s *FactService) UpdateFact(ctx context.Context, id string, update entities.FactUpdate) (*entities.Fact, error) {
	fact, ok := s.facts[id]
	if !ok {
		return nil, &entities.NotFoundError{Kind: "fact", ID: id}
	}

	changed := false
	if update.Content != nil && *update.Content != fact.Content {
		if *update.Content == "" {
			return nil, &entities.ValidationError{Field: "content", Reason: "must not be empty"}
		}
		fact.Content = *update.Content
		changed = true
	}
	if update.Importance != nil && clampScale(*update.Importance) != fact.Importance {
		fact.Importance = clampScale(*update.Importance)
		changed = true
	}
	if update.Confidence != nil && clampScale(*update.Confidence) != fact.Confidence {
		fact.Confidence = clampScale(*update.Confidence)
		changed = true
	}
	if update.Tags != nil {
		s.reindexTags(fact, update.Tags)
	}
	if update.RelatedIDs != nil {
		fact.RelatedFactIDs = append([]string(nil), update.RelatedIDs...)
	}

	fact.UpdatedAt = timeNow()
	if changed {
		fact.Version++
		s.persist(ctx, fact, entities.ChangeUpdate, "fact updated")
		s.mirror(ctx, fact)
	} else if s.store != nil {
		if err := s.store.SaveFact(ctx, fact); err != nil {
			s.logger.Warn("persisting fact", zap.String("fact_id", fact.ID), zap.Error(err))
		}
	}

	copied := *fact
	return &copied, nil
}

// InvalidateFact marks a fact invalid, excluding it from context assembly.
// Idempotent: invalidating an already-invalid fact is a no-op.
func (s *FactService) InvalidateFact(ctx context.Context, id string) error {
	return s.setValidity(ctx, id, false)
}

// ValidateFact restores a previously invalidated fact. Idempotent.
func (s *FactService) ValidateFact(ctx context.Context, id string) error {
	return s.setValidity(ctx, id, true)
}

func (s *FactService) setValidity(ctx context.Context, id string, valid bool) error {
	fact, ok := s.facts[id]
	if !ok {
		return &entities.NotFoundError{Kind: "fact", ID: id}
	}
	if fact.IsValid == valid {
		return nil
	}

	fact.IsValid = valid
	fact.UpdatedAt = timeNow()

	change := entities.ChangeInvalidation
	action := "fact_invalidated"
	if valid {
		change = entities.ChangeRevalidation
		action = "fact_revalidated"
	}
	s.persist(ctx, fact, change, action)
	s.audit(ctx, action, fact.ID, nil)
	return nil
}

// GetFact returns a copy of the fact with the given id.
func (s *FactService) GetFact(id string) (*entities.Fact, error) {
	fact, ok := s.facts[id]
	if !ok {
		return nil, &entities.NotFoundError{Kind: "fact", ID: id}
	}
	copied := *fact
	return &copied, nil
}

// GetFactsByCategory returns copies of all valid facts in a category,
// ordered by creation time then id for determinism.
func (s *FactService) GetFactsByCategory(category entities.FactCategory) []entities.Fact {
	return s.collect(s.byCategory[category])
}

// GetFactsByTag returns copies of all valid facts carrying a tag.
func (s *FactService) GetFactsByTag(tag string) []entities.Fact {
	return s.collect(s.byTag[tag])
}

// ValidFacts returns copies of every valid fact.
func (s *FactService) ValidFacts() []entities.Fact {
	ids := make([]string, 0, len(s.facts))
	for id := range s.facts {
		ids = append(ids, id)
	}
	return s.collect(ids)
}

// TouchReference records that a fact was referenced in assembled context.
func (s *FactService) TouchReference(id string) {
	if fact, ok := s.facts[id]; ok {
		fact.LastReferencedAt = timeNow()
	}
}

func (s *FactService) collect(ids []string) []entities.Fact {
	facts := make([]entities.Fact, 0, len(ids))
	for _, id := range ids {
		if fact, ok := s.facts[id]; ok && fact.IsValid {
			facts = append(facts, *fact)
		}
	}
	sort.Slice(facts, func(i, j int) bool {
		if !facts[i].CreatedAt.Equal(facts[j].CreatedAt) {
			return facts[i].CreatedAt.Before(facts[j].CreatedAt)
		}
		return facts[i].ID < facts[j].ID
	})
	return facts
}

func (s *FactService) reindexTags(fact *entities.Fact, tags []string) {
	for _, tag := range fact.Tags {
		ids := s.byTag[tag]
		for i, id := range ids {
			if id == fact.ID {
				s.byTag[tag] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
	fact.Tags = append([]string(nil), tags...)
	for _, tag := range fact.Tags {
		s.byTag[tag] = append(s.byTag[tag], fact.ID)
	}
}

// persist saves the fact and a version snapshot. Persistence is best-effort:
// failures are logged, never surfaced, so the in-memory state stays
// authoritative for the session.
func (s *FactService) persist(ctx context.Context, fact *entities.Fact, change entities.ChangeType, reason string) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveFact(ctx, fact); err != nil {
		s.logger.Warn("persisting fact", zap.String("fact_id", fact.ID), zap.Error(err))
		return
	}
	version := &entities.FactVersion{
		ID:         uuid.New().String(),
		FactID:     fact.ID,
		Version:    fact.Version,
		ChangeType: change,
		Data:       *fact,
		Reason:     reason,
		CreatedAt:  timeNow(),
	}
	if err := s.store.SaveVersion(ctx, version); err != nil {
		s.logger.Warn("persisting fact version", zap.String("fact_id", fact.ID), zap.Error(err))
	}
}

// mirror pushes the fact into the semantic recall index, if configured.
func (s *FactService) mirror(ctx context.Context, fact *entities.Fact) {
	if s.vectorDB == nil || s.embedder == nil {
		return
	}
	embedding, err := s.embedder.Embed(ctx, fact.Content)
	if err != nil {
		s.logger.Warn("embedding fact",
			zap.String("fact_id", fact.ID),
			zap.String("kind", string(entities.ServiceKind(err))),
			zap.Error(err))
		return
	}
	mirrored := *fact
	mirrored.Embedding = embedding
	if err := s.vectorDB.Save(ctx, mirrored); err != nil {
		s.logger.Warn("mirroring fact to recall index", zap.String("fact_id", fact.ID), zap.Error(err))
	}
}

func (s *FactService) audit(ctx context.Context, action, factID string, details map[string]any) {
	if s.store == nil {
		return
	}
	if err := s.store.LogAction(ctx, action, factID, details); err != nil {
		s.logger.Warn("writing audit entry", zap.String("action", action), zap.Error(err))
	}
}
