package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/ports"
)

// History owns the append-only decision record log and enforces the
// single-current-decision invariant: at most one decision is presented
// (awaiting a player choice) at any time. The invariant is guarded by a
// mutex so racing presentation attempts cannot both succeed.
type History struct {
	mu        sync.Mutex
	records   []entities.DecisionRecord
	active    *entities.Decision
	presented int

	store  ports.Store // optional durable persistence
	logger *zap.Logger
}

// NewHistory creates a decision history. The store may be nil.
func NewHistory(store ports.Store, logger *zap.Logger) *History {
	return &History{store: store, logger: logger}
}

// Present marks the decision as current. It fails with a ConflictError if
// another decision is already awaiting a choice.
func (h *History) Present(decision entities.Decision) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active != nil {
		return &entities.ConflictError{
			Reason: "a decision is already presented and awaiting a choice",
		}
	}

	copied := decision
	h.active = &copied
	h.presented++
	return nil
}

// Record appends the player's choice for the currently presented decision
// and clears the current slot. Persistence is best-effort; the in-memory
// log stays authoritative.
func (h *History) Record(ctx context.Context, decisionID, selectedOptionID, outcome string) (*entities.DecisionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active == nil || h.active.ID != decisionID {
		return nil, &entities.NotFoundError{Kind: "presented decision", ID: decisionID}
	}

	option := h.active.Option(selectedOptionID)
	if option == nil {
		return nil, &entities.NotFoundError{Kind: "option", ID: selectedOptionID}
	}

	record := entities.DecisionRecord{
		DecisionID:       decisionID,
		Prompt:           h.active.Prompt,
		SelectedOptionID: selectedOptionID,
		SelectedText:     option.Text,
		NarrativeOutcome: outcome,
		TimestampMs:      timeNow().UnixMilli(),
	}
	h.records = append(h.records, record)
	h.active = nil

	if h.store != nil {
		if err := h.store.SaveDecisionRecord(ctx, &record); err != nil {
			h.logger.Warn("persisting decision record",
				zap.String("decision_id", decisionID), zap.Error(err))
		}
	}

	return &record, nil
}

// Abandon clears the current decision without recording a choice, e.g. when
// the host tears down a scene. No-op when nothing is presented.
func (h *History) Abandon() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = nil
}

// HasActive reports whether a decision is currently presented.
func (h *History) HasActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active != nil
}

// Active returns a copy of the currently presented decision, or nil.
func (h *History) Active() *entities.Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil {
		return nil
	}
	copied := *h.active
	return &copied
}

// PresentedCount returns how many decisions have been presented so far.
func (h *History) PresentedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presented
}

// GetHistory returns decision records most-recent-first. limit <= 0 returns
// everything.
func (h *History) GetHistory(limit int) []entities.DecisionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]entities.DecisionRecord, 0, len(h.records))
	for i := len(h.records) - 1; i >= 0; i-- {
		out = append(out, h.records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// RecentWindow returns the last n records in chronological order, the shape
// prompt construction wants.
func (h *History) RecentWindow(n int) []entities.DecisionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := 0
	if n > 0 && len(h.records) > n {
		start = len(h.records) - n
	}
	return append([]entities.DecisionRecord(nil), h.records[start:]...)
}
