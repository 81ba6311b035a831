package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/ports"
)

// DefaultRecallLimit is the default number of facts recalled per situation.
const DefaultRecallLimit = 8

// RecallService widens the assembler's candidate pool with facts
// semantically related to the current situation. Recall is strictly
// best-effort: any failure is logged and an empty result returned, so the
// deterministic scoring path never depends on the index being reachable.
type RecallService struct {
	embedder ports.Embedder
	vectorDB ports.VectorDB
	logger   *zap.Logger
}

// NewRecallService creates a new recall service.
func NewRecallService(embedder ports.Embedder, vectorDB ports.VectorDB, logger *zap.Logger) *RecallService {
	return &RecallService{
		embedder: embedder,
		vectorDB: vectorDB,
		logger:   logger,
	}
}

// Recall embeds a compact description of the situation and returns related
// valid facts as lore context elements.
func (s *RecallService) Recall(ctx context.Context, situation entities.Situation, limit int) []entities.ContextElement {
	if limit <= 0 {
		limit = DefaultRecallLimit
	}

	query := situationQuery(situation)
	if query == "" {
		return nil
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("embedding situation for recall",
			zap.String("kind", string(entities.ServiceKind(err))),
			zap.Error(err))
		return nil
	}

	facts, err := s.vectorDB.Search(ctx, embedding, limit)
	if err != nil {
		s.logger.Warn("searching recall index", zap.Error(err))
		return nil
	}

	elements := make([]entities.ContextElement, 0, len(facts))
	for _, fact := range facts {
		if !fact.IsValid {
			continue
		}
		elements = append(elements, FactElement(fact))
	}
	return elements
}

// FactElement derives the read-only context view of a fact.
func FactElement(fact entities.Fact) entities.ContextElement {
	return entities.ContextElement{
		ID:          fact.ID,
		Type:        entities.ElementLore,
		Content:     fact.Content,
		Tags:        append([]string(nil), fact.Tags...),
		Importance:  fact.Importance,
		TimestampMs: fact.UpdatedAt.UnixMilli(),
	}
}

// situationQuery folds the salient situation fields into one search string.
func situationQuery(situation entities.Situation) string {
	parts := make([]string, 0, 3)
	if situation.CurrentLocation != "" {
		parts = append(parts, situation.CurrentLocation)
	}
	if len(situation.RecentTopics) > 0 {
		parts = append(parts, strings.Join(situation.RecentTopics, " "))
	}
	if situation.NarrativeText != "" {
		parts = append(parts, truncateOldest(situation.NarrativeText, 400))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
