package mocks

import (
	"context"
	"sync"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

// Store is a mock implementation of ports.Store backed by slices.
type Store struct {
	mu       sync.Mutex
	Err      error
	Facts    []entities.Fact
	Versions []entities.FactVersion
	Records  []entities.DecisionRecord
	Audit    []entities.AuditEntry
}

// EnsureSchema returns the configured error.
func (m *Store) EnsureSchema(ctx context.Context) error { return m.Err }

// Close is a no-op.
func (m *Store) Close() error { return nil }

// SaveFact inserts or replaces the fact by id.
func (m *Store) SaveFact(ctx context.Context, fact *entities.Fact) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Facts {
		if m.Facts[i].ID == fact.ID {
			m.Facts[i] = *fact
			return nil
		}
	}
	m.Facts = append(m.Facts, *fact)
	return nil
}

// FindFactByID finds a fact by id.
func (m *Store) FindFactByID(ctx context.Context, id string) (*entities.Fact, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Facts {
		if m.Facts[i].ID == id {
			fact := m.Facts[i]
			return &fact, nil
		}
	}
	return nil, &entities.NotFoundError{Kind: "fact", ID: id}
}

// ListFacts lists stored facts.
func (m *Store) ListFacts(ctx context.Context, includeInvalid bool) ([]entities.Fact, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Fact
	for _, f := range m.Facts {
		if includeInvalid || f.IsValid {
			out = append(out, f)
		}
	}
	return out, nil
}

// ListFactsByCategory lists stored facts in a category.
func (m *Store) ListFactsByCategory(ctx context.Context, category entities.FactCategory) ([]entities.Fact, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Fact
	for _, f := range m.Facts {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out, nil
}

// SaveVersion appends a version snapshot.
func (m *Store) SaveVersion(ctx context.Context, version *entities.FactVersion) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Versions = append(m.Versions, *version)
	return nil
}

// FindVersionsByFact returns versions for a fact, newest first.
func (m *Store) FindVersionsByFact(ctx context.Context, factID string) ([]entities.FactVersion, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.FactVersion
	for i := len(m.Versions) - 1; i >= 0; i-- {
		if m.Versions[i].FactID == factID {
			out = append(out, m.Versions[i])
		}
	}
	return out, nil
}

// SaveDecisionRecord appends a decision record.
func (m *Store) SaveDecisionRecord(ctx context.Context, record *entities.DecisionRecord) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, *record)
	return nil
}

// ListDecisionRecords returns records most-recent-first.
func (m *Store) ListDecisionRecords(ctx context.Context, limit int) ([]entities.DecisionRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.DecisionRecord
	for i := len(m.Records) - 1; i >= 0; i-- {
		out = append(out, m.Records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// LogAction appends an audit entry.
func (m *Store) LogAction(ctx context.Context, action string, factID string, details map[string]any) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Audit = append(m.Audit, entities.AuditEntry{
		ID:      int64(len(m.Audit) + 1),
		Action:  action,
		FactID:  factID,
		Details: details,
	})
	return nil
}

// FindAuditLog returns audit entries for a fact.
func (m *Store) FindAuditLog(ctx context.Context, factID string) ([]entities.AuditEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.AuditEntry
	for _, e := range m.Audit {
		if e.FactID == factID {
			out = append(out, e)
		}
	}
	return out, nil
}
