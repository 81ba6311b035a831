package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

// DefaultTokenBudget caps assembled context size when the host does not
// configure one.
const DefaultTokenBudget = 2048

// PipelineState names the stage the decision pipeline is in, for logging.
type PipelineState string

const (
	StateIdle             PipelineState = "idle"
	StateDetecting        PipelineState = "detecting"
	StateGenerating       PipelineState = "generating"
	StateValidating       PipelineState = "validating"
	StateTemplateFallback PipelineState = "template_fallback"
	StatePresented        PipelineState = "presented"
	StateRecorded         PipelineState = "recorded"
)

// HandleOptions tweaks a single narrative event.
type HandleOptions struct {
	// Force bypasses the detection threshold and minimum-interval gate,
	// e.g. for a manual test trigger.
	Force bool
	// Extra adds host-supplied story points and session variables to the
	// assembly candidate pool.
	Extra []entities.ContextElement
}

// NarrativeOutcome reports what one narrative event produced.
type NarrativeOutcome struct {
	Detection  entities.DetectionResult
	FactsAdded []entities.Fact
	Decision   *entities.Decision // nil when no decision was presented
}

// Session drives the decision pipeline for one logical game session: fact
// extraction and decision detection run in parallel off each narrative
// event, and when detection passes, context assembly, generation, and the
// quality gate produce at most one presented decision. The session context
// is threaded explicitly through every call; nothing is global.
type Session struct {
	facts     *FactService
	extractor *Extractor
	assembler *Assembler
	detector  *Detector
	generator *Generator
	history   *History
	recall    *RecallService // optional
	logger    *zap.Logger

	tokenBudget int

	// seq numbers in-flight generations; a result is committed only if no
	// newer event superseded it, so canceled or stale generations never
	// mutate shared state.
	seq atomic.Uint64
}

// SessionConfig holds per-session static configuration from the host.
type SessionConfig struct {
	TokenBudget int
}

// NewSession wires a session from its components. recall may be nil.
func NewSession(cfg SessionConfig, facts *FactService, extractor *Extractor, assembler *Assembler, detector *Detector, generator *Generator, history *History, recall *RecallService, logger *zap.Logger) *Session {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultTokenBudget
	}
	return &Session{
		facts:       facts,
		extractor:   extractor,
		assembler:   assembler,
		detector:    detector,
		generator:   generator,
		history:     history,
		recall:      recall,
		logger:      logger,
		tokenBudget: cfg.TokenBudget,
	}
}

// Facts exposes the session's fact service.
func (s *Session) Facts() *FactService { return s.facts }

// History exposes the session's decision history.
func (s *Session) History() *History { return s.history }

// HandleNarrative processes one narrative event: extracts facts and scores
// the moment in parallel, then, if the moment warrants a choice and none is
// already pending, assembles context and generates a decision. External
// service failures never surface here except in model-only mode.
func (s *Session) HandleNarrative(ctx context.Context, situation entities.Situation, opts HandleOptions) (NarrativeOutcome, error) {
	mySeq := s.seq.Add(1)
	outcome := NarrativeOutcome{}

	s.logState(StateDetecting, mySeq)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		added, err := s.ingestFacts(gctx, situation.NarrativeText)
		outcome.FactsAdded = added
		return err
	})
	g.Go(func() error {
		outcome.Detection = s.detector.Detect(situation)
		return nil
	})
	if err := g.Wait(); err != nil {
		return outcome, fmt.Errorf("processing narrative event: %w", err)
	}

	if !s.detector.ShouldPresent(outcome.Detection, situation, opts.Force) {
		s.logState(StateIdle, mySeq)
		return outcome, nil
	}
	if s.history.HasActive() {
		s.logger.Debug("decision already pending, skipping generation",
			zap.Float64("score", outcome.Detection.Score))
		return outcome, nil
	}

	nowMs := timeNow().UnixMilli()
	payload, included := s.assembler.Assemble(ctx, s.candidates(ctx, situation, opts.Extra), situation, s.tokenBudget, nowMs)
	for _, id := range included {
		s.facts.TouchReference(id)
	}

	s.logState(StateGenerating, mySeq)
	decision, err := s.generator.Generate(ctx, GenerationRequest{
		Situation:   situation,
		ContextText: payload,
		Recent:      s.history.RecentWindow(historyWindowSize),
		Presented:   s.history.PresentedCount(),
		NowMs:       nowMs,
	})
	if err != nil {
		// Only model-only mode surfaces errors; the host chose to see them.
		return outcome, err
	}

	// A newer event superseded this generation while the model call was in
	// flight; its result must not reach shared state.
	if s.seq.Load() != mySeq {
		s.logger.Info("discarding stale generation",
			zap.Uint64("seq", mySeq), zap.Uint64("current", s.seq.Load()))
		return outcome, nil
	}

	if err := s.history.Present(decision); err != nil {
		if entities.IsConflict(err) {
			s.logger.Debug("presentation lost race to another decision")
			return outcome, nil
		}
		return outcome, fmt.Errorf("presenting decision: %w", err)
	}

	s.logState(StatePresented, mySeq)
	outcome.Decision = &decision
	return outcome, nil
}

// RecordChoice records the player's selection for the presented decision.
func (s *Session) RecordChoice(ctx context.Context, decisionID, optionID, narrativeOutcome string) (*entities.DecisionRecord, error) {
	record, err := s.history.Record(ctx, decisionID, optionID, narrativeOutcome)
	if err != nil {
		return nil, err
	}
	s.logState(StateRecorded, s.seq.Load())
	s.logger.Info("decision recorded",
		zap.String("decision_id", decisionID),
		zap.String("option_id", optionID))

	// The outcome text is narrative too; the world model should learn
	// from it.
	if _, ingestErr := s.ingestFacts(ctx, narrativeOutcome); ingestErr != nil {
		s.logger.Warn("ingesting outcome facts", zap.Error(ingestErr))
	}
	return record, nil
}

// Abandon cancels the presented decision, if any, and invalidates any
// generation still in flight.
func (s *Session) Abandon() {
	s.seq.Add(1)
	s.history.Abandon()
}

// ingestFacts extracts fact drafts from text and folds them into the store
// through conflict resolution.
func (s *Session) ingestFacts(ctx context.Context, text string) ([]entities.Fact, error) {
	var added []entities.Fact
	for _, draft := range s.extractor.ExtractFromText(text) {
		conflicts := s.facts.DetectConflicts(draft)
		fact, err := s.facts.ResolveConflicts(ctx, draft, conflicts)
		if err != nil {
			return added, fmt.Errorf("resolving fact conflicts: %w", err)
		}
		if fact != nil {
			added = append(added, *fact)
		}
	}
	return added, nil
}

// candidates builds the assembly pool: valid facts, recent decisions,
// semantic recalls, and host-supplied extras.
func (s *Session) candidates(ctx context.Context, situation entities.Situation, extra []entities.ContextElement) []entities.ContextElement {
	var pool []entities.ContextElement

	for _, fact := range s.facts.ValidFacts() {
		pool = append(pool, FactElement(fact))
	}
	for _, rec := range s.history.RecentWindow(historyWindowSize) {
		pool = append(pool, entities.ContextElement{
			ID:          "decision-" + rec.DecisionID,
			Type:        entities.ElementDecision,
			Content:     fmt.Sprintf("Asked %q, the player chose %q.", rec.Prompt, rec.SelectedText),
			Importance:  6,
			TimestampMs: rec.TimestampMs,
		})
	}
	if s.recall != nil {
		seen := make(map[string]struct{}, len(pool))
		for _, el := range pool {
			seen[el.ID] = struct{}{}
		}
		for _, el := range s.recall.Recall(ctx, situation, DefaultRecallLimit) {
			if _, dup := seen[el.ID]; !dup {
				pool = append(pool, el)
			}
		}
	}
	return append(pool, extra...)
}

func (s *Session) logState(state PipelineState, seq uint64) {
	s.logger.Debug("pipeline state", zap.String("state", string(state)), zap.Uint64("seq", seq))
}
