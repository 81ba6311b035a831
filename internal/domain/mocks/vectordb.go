package mocks

import (
	"context"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

// VectorDB is a mock implementation of ports.VectorDB.
type VectorDB struct {
	Facts []entities.Fact
	Err   error

	Saved []entities.Fact
}

// EnsureCollection returns the configured error.
func (m *VectorDB) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	return m.Err
}

// Save records the fact.
func (m *VectorDB) Save(ctx context.Context, fact entities.Fact) error {
	if m.Err != nil {
		return m.Err
	}
	m.Saved = append(m.Saved, fact)
	return nil
}

// SaveBatch records the facts.
func (m *VectorDB) SaveBatch(ctx context.Context, facts []entities.Fact) error {
	if m.Err != nil {
		return m.Err
	}
	m.Saved = append(m.Saved, facts...)
	return nil
}

// Search returns the configured facts up to limit.
func (m *VectorDB) Search(ctx context.Context, embedding []float32, limit int) ([]entities.Fact, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && limit < len(m.Facts) {
		return m.Facts[:limit], nil
	}
	return m.Facts, nil
}

// SearchByCategory returns the configured facts filtered by category.
func (m *VectorDB) SearchByCategory(ctx context.Context, embedding []float32, category entities.FactCategory, limit int) ([]entities.Fact, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var filtered []entities.Fact
	for _, f := range m.Facts {
		if f.Category == category {
			filtered = append(filtered, f)
		}
	}
	if limit > 0 && limit < len(filtered) {
		return filtered[:limit], nil
	}
	return filtered, nil
}

// Delete returns the configured error.
func (m *VectorDB) Delete(ctx context.Context, id string) error {
	return m.Err
}

// Close is a no-op.
func (m *VectorDB) Close() error { return nil }
