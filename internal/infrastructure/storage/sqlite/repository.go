// Package sqlite provides a SQLite implementation of the Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/infrastructure/config"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.Store using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- World facts (versioned, never hard-deleted)
	CREATE TABLE IF NOT EXISTS facts (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		importance INTEGER NOT NULL,
		confidence INTEGER NOT NULL,
		tags TEXT,
		related_fact_ids TEXT,
		is_valid INTEGER NOT NULL DEFAULT 1,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		last_referenced_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_facts_category ON facts(category);
	CREATE INDEX IF NOT EXISTS idx_facts_valid ON facts(is_valid);

	-- Fact version history (tracks changes over time)
	CREATE TABLE IF NOT EXISTS fact_versions (
		id TEXT PRIMARY KEY,
		fact_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		change_type TEXT NOT NULL,
		data TEXT NOT NULL,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(fact_id, version, change_type)
	);
	CREATE INDEX IF NOT EXISTS idx_fact_versions_fact ON fact_versions(fact_id);

	-- Decision records (append-only, presentation order)
	CREATE TABLE IF NOT EXISTS decision_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		decision_id TEXT NOT NULL,
		prompt TEXT NOT NULL,
		selected_option_id TEXT NOT NULL,
		selected_text TEXT NOT NULL,
		narrative_outcome TEXT,
		timestamp_ms INTEGER NOT NULL
	);

	-- Audit log (conflict resolutions, invalidations)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		fact_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_fact ON audit_log(fact_id);
	CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
	`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveFact inserts or updates a fact.
func (r *Repository) SaveFact(ctx context.Context, fact *entities.Fact) error {
	tags, err := json.Marshal(fact.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}
	related, err := json.Marshal(fact.RelatedFactIDs)
	if err != nil {
		return fmt.Errorf("marshaling related fact ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO facts (id, content, category, importance, confidence, tags,
			related_fact_ids, is_valid, version, created_at, updated_at, last_referenced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			category = excluded.category,
			importance = excluded.importance,
			confidence = excluded.confidence,
			tags = excluded.tags,
			related_fact_ids = excluded.related_fact_ids,
			is_valid = excluded.is_valid,
			version = excluded.version,
			updated_at = excluded.updated_at,
			last_referenced_at = excluded.last_referenced_at`,
		fact.ID, fact.Content, string(fact.Category), fact.Importance, fact.Confidence,
		string(tags), string(related), boolToInt(fact.IsValid), fact.Version,
		fact.CreatedAt, fact.UpdatedAt, fact.LastReferencedAt)
	if err != nil {
		return fmt.Errorf("saving fact: %w", err)
	}
	return nil
}

// FindFactByID finds a fact by its id.
func (r *Repository) FindFactByID(ctx context.Context, id string) (*entities.Fact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, content, category, importance, confidence, tags,
			related_fact_ids, is_valid, version, created_at, updated_at, last_referenced_at
		FROM facts WHERE id = ?`, id)

	fact, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entities.NotFoundError{Kind: "fact", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("finding fact: %w", err)
	}
	return fact, nil
}

// ListFacts lists all facts, optionally including invalidated ones.
func (r *Repository) ListFacts(ctx context.Context, includeInvalid bool) ([]entities.Fact, error) {
	query := `
		SELECT id, content, category, importance, confidence, tags,
			related_fact_ids, is_valid, version, created_at, updated_at, last_referenced_at
		FROM facts`
	if !includeInvalid {
		query += ` WHERE is_valid = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	defer rows.Close()

	return collectFacts(rows)
}

// ListFactsByCategory lists facts in a category.
func (r *Repository) ListFactsByCategory(ctx context.Context, category entities.FactCategory) ([]entities.Fact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, content, category, importance, confidence, tags,
			related_fact_ids, is_valid, version, created_at, updated_at, last_referenced_at
		FROM facts WHERE category = ? ORDER BY created_at, id`, string(category))
	if err != nil {
		return nil, fmt.Errorf("listing facts by category: %w", err)
	}
	defer rows.Close()

	return collectFacts(rows)
}

// SaveVersion saves a new fact version snapshot.
func (r *Repository) SaveVersion(ctx context.Context, version *entities.FactVersion) error {
	data, err := json.Marshal(version.Data)
	if err != nil {
		return fmt.Errorf("marshaling version data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO fact_versions (id, fact_id, version, change_type, data, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		version.ID, version.FactID, version.Version, string(version.ChangeType),
		string(data), version.Reason, version.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving fact version: %w", err)
	}
	return nil
}

// FindVersionsByFact finds all versions of a fact, newest first.
func (r *Repository) FindVersionsByFact(ctx context.Context, factID string) ([]entities.FactVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, fact_id, version, change_type, data, reason, created_at
		FROM fact_versions WHERE fact_id = ? ORDER BY created_at DESC, version DESC`, factID)
	if err != nil {
		return nil, fmt.Errorf("finding fact versions: %w", err)
	}
	defer rows.Close()

	var versions []entities.FactVersion
	for rows.Next() {
		var (
			v      entities.FactVersion
			change string
			data   string
			reason sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.FactID, &v.Version, &change, &data, &reason, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning fact version: %w", err)
		}
		v.ChangeType = entities.ChangeType(change)
		v.Reason = reason.String
		if err := json.Unmarshal([]byte(data), &v.Data); err != nil {
			return nil, fmt.Errorf("unmarshaling version data: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SaveDecisionRecord appends a decision record.
func (r *Repository) SaveDecisionRecord(ctx context.Context, record *entities.DecisionRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO decision_records (decision_id, prompt, selected_option_id,
			selected_text, narrative_outcome, timestamp_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.DecisionID, record.Prompt, record.SelectedOptionID,
		record.SelectedText, record.NarrativeOutcome, record.TimestampMs)
	if err != nil {
		return fmt.Errorf("saving decision record: %w", err)
	}
	return nil
}

// ListDecisionRecords returns records most-recent-first, up to limit.
func (r *Repository) ListDecisionRecords(ctx context.Context, limit int) ([]entities.DecisionRecord, error) {
	query := `
		SELECT decision_id, prompt, selected_option_id, selected_text,
			narrative_outcome, timestamp_ms
		FROM decision_records ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing decision records: %w", err)
	}
	defer rows.Close()

	var records []entities.DecisionRecord
	for rows.Next() {
		var (
			rec     entities.DecisionRecord
			outcome sql.NullString
		)
		if err := rows.Scan(&rec.DecisionID, &rec.Prompt, &rec.SelectedOptionID,
			&rec.SelectedText, &outcome, &rec.TimestampMs); err != nil {
			return nil, fmt.Errorf("scanning decision record: %w", err)
		}
		rec.NarrativeOutcome = outcome.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, action string, factID string, details map[string]any) error {
	var detailsJSON []byte
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling audit details: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (action, fact_id, details, created_at)
		VALUES (?, ?, ?, ?)`,
		action, factID, string(detailsJSON), timeNow())
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog finds audit log entries for a specific fact.
func (r *Repository) FindAuditLog(ctx context.Context, factID string) ([]entities.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, fact_id, details, created_at
		FROM audit_log WHERE fact_id = ? ORDER BY id`, factID)
	if err != nil {
		return nil, fmt.Errorf("finding audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var (
			entry   entities.AuditEntry
			fid     sql.NullString
			details sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &fid, &details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entry.FactID = fid.String
		if details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared fact scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanFact(s scanner) (*entities.Fact, error) {
	var (
		fact     entities.Fact
		category string
		tags     sql.NullString
		related  sql.NullString
		isValid  int
	)
	err := s.Scan(&fact.ID, &fact.Content, &category, &fact.Importance, &fact.Confidence,
		&tags, &related, &isValid, &fact.Version, &fact.CreatedAt, &fact.UpdatedAt,
		&fact.LastReferencedAt)
	if err != nil {
		return nil, err
	}

	fact.Category = entities.FactCategory(category)
	fact.IsValid = isValid != 0
	if tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &fact.Tags); err != nil {
			return nil, fmt.Errorf("unmarshaling tags: %w", err)
		}
	}
	if related.String != "" {
		if err := json.Unmarshal([]byte(related.String), &fact.RelatedFactIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling related fact ids: %w", err)
		}
	}
	return &fact, nil
}

func collectFacts(rows *sql.Rows) ([]entities.Fact, error) {
	var facts []entities.Fact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		facts = append(facts, *fact)
	}
	return facts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
