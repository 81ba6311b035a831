package ports

import (
	"context"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

// VectorDB defines the interface for the semantic fact-recall index. It
// mirrors valid facts as embedded points so the context assembler can widen
// its candidate pool with facts related to the current situation. Recall is
// best-effort; the deterministic scoring path never depends on it.
type VectorDB interface {
	// EnsureCollection creates the collection if it doesn't exist.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// Save stores a fact with its embedding.
	Save(ctx context.Context, fact entities.Fact) error

	// SaveBatch stores multiple facts.
	SaveBatch(ctx context.Context, facts []entities.Fact) error

	// Search finds facts semantically similar to the embedding.
	Search(ctx context.Context, embedding []float32, limit int) ([]entities.Fact, error)

	// SearchByCategory finds similar facts filtered by category.
	SearchByCategory(ctx context.Context, embedding []float32, category entities.FactCategory, limit int) ([]entities.Fact, error)

	// Delete removes a fact from the index.
	Delete(ctx context.Context, id string) error

	// Close closes the underlying connection.
	Close() error
}
