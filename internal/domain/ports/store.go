package ports

import (
	"context"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

// Store defines the interface for durable engine-owned state: facts, fact
// version history, decision records, and the audit log. The in-memory fact
// service and decision history remain authoritative during a session; the
// store exists so a session can be persisted and restored.
type Store interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Fact operations

	// SaveFact inserts or updates a fact.
	SaveFact(ctx context.Context, fact *entities.Fact) error

	// FindFactByID finds a fact by its id.
	FindFactByID(ctx context.Context, id string) (*entities.Fact, error)

	// ListFacts lists all facts, optionally including invalidated ones.
	ListFacts(ctx context.Context, includeInvalid bool) ([]entities.Fact, error)

	// ListFactsByCategory lists facts in a category.
	ListFactsByCategory(ctx context.Context, category entities.FactCategory) ([]entities.Fact, error)

	// Version history

	// SaveVersion saves a new fact version snapshot.
	SaveVersion(ctx context.Context, version *entities.FactVersion) error

	// FindVersionsByFact finds all versions of a fact, newest first.
	FindVersionsByFact(ctx context.Context, factID string) ([]entities.FactVersion, error)

	// Decision history

	// SaveDecisionRecord appends a decision record.
	SaveDecisionRecord(ctx context.Context, record *entities.DecisionRecord) error

	// ListDecisionRecords returns records most-recent-first, up to limit.
	// limit <= 0 means no limit.
	ListDecisionRecords(ctx context.Context, limit int) ([]entities.DecisionRecord, error)

	// Audit log

	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, action string, factID string, details map[string]any) error

	// FindAuditLog finds audit log entries for a specific fact.
	FindAuditLog(ctx context.Context, factID string) ([]entities.AuditEntry, error)
}
