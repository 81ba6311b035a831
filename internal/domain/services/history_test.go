package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/mocks"
)

func testDecision(id string) entities.Decision {
	return entities.Decision{
		ID:     id,
		Prompt: "Which road does the party take?",
		Options: []entities.DecisionOption{
			{ID: id + "-o1", Text: "The high pass"},
			{ID: id + "-o2", Text: "The river road"},
		},
	}
}

func TestPresentRejectsSecondDecision(t *testing.T) {
	h := NewHistory(nil, zap.NewNop())

	require.NoError(t, h.Present(testDecision("d1")))
	err := h.Present(testDecision("d2"))
	require.Error(t, err)
	assert.True(t, entities.IsConflict(err))

	active := h.Active()
	require.NotNil(t, active)
	assert.Equal(t, "d1", active.ID)
	assert.Equal(t, 1, h.PresentedCount())
}

func TestPresentConcurrentOnlyOneWins(t *testing.T) {
	h := NewHistory(nil, zap.NewNop())

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.Present(testDecision("race"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, entities.IsConflict(err))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, h.PresentedCount())
}

func TestRecord(t *testing.T) {
	store := &mocks.Store{}
	h := NewHistory(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, h.Present(testDecision("d1")))

	record, err := h.Record(ctx, "d1", "d1-o2", "They follow the river east.")
	require.NoError(t, err)
	assert.Equal(t, "The river road", record.SelectedText)
	assert.Equal(t, "They follow the river east.", record.NarrativeOutcome)
	assert.NotZero(t, record.TimestampMs)

	assert.False(t, h.HasActive(), "recording clears the current decision")
	require.Len(t, store.Records, 1)

	// A new decision may be presented now.
	assert.NoError(t, h.Present(testDecision("d2")))
}

func TestRecordErrors(t *testing.T) {
	h := NewHistory(nil, zap.NewNop())
	ctx := context.Background()

	// Nothing presented.
	_, err := h.Record(ctx, "d1", "d1-o1", "")
	assert.True(t, entities.IsNotFound(err))

	require.NoError(t, h.Present(testDecision("d1")))

	// Wrong decision id.
	_, err = h.Record(ctx, "other", "d1-o1", "")
	assert.True(t, entities.IsNotFound(err))

	// Unknown option id.
	_, err = h.Record(ctx, "d1", "bogus", "")
	assert.True(t, entities.IsNotFound(err))

	// The decision stays presented after failed records.
	assert.True(t, h.HasActive())
}

func TestAbandon(t *testing.T) {
	h := NewHistory(nil, zap.NewNop())

	h.Abandon() // no-op when nothing is presented

	require.NoError(t, h.Present(testDecision("d1")))
	h.Abandon()

	assert.False(t, h.HasActive())
	assert.Empty(t, h.GetHistory(0), "abandoned decisions leave no record")
	assert.Equal(t, 1, h.PresentedCount())
}

func TestGetHistoryOrder(t *testing.T) {
	h := NewHistory(nil, zap.NewNop())
	ctx := context.Background()

	for _, id := range []string{"d1", "d2", "d3"} {
		require.NoError(t, h.Present(testDecision(id)))
		_, err := h.Record(ctx, id, id+"-o1", "")
		require.NoError(t, err)
	}

	all := h.GetHistory(0)
	require.Len(t, all, 3)
	assert.Equal(t, "d3", all[0].DecisionID, "most recent first")
	assert.Equal(t, "d1", all[2].DecisionID)

	limited := h.GetHistory(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "d3", limited[0].DecisionID)

	window := h.RecentWindow(2)
	require.Len(t, window, 2)
	assert.Equal(t, "d2", window[0].DecisionID, "window is chronological")
	assert.Equal(t, "d3", window[1].DecisionID)
}

func TestRecordPersistenceFailureIsNotFatal(t *testing.T) {
	store := &mocks.Store{Err: assert.AnError}
	h := NewHistory(store, zap.NewNop())

	require.NoError(t, h.Present(testDecision("d1")))
	record, err := h.Record(context.Background(), "d1", "d1-o1", "")
	require.NoError(t, err, "in-memory log stays authoritative")
	assert.NotNil(t, record)
	assert.Len(t, h.GetHistory(0), 1)
}
