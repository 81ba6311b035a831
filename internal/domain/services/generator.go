package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/ports"
)

// DefaultGenerationTimeout bounds a single language-model call.
const DefaultGenerationTimeout = 12 * time.Second

// maxModelRetries is the number of retries after the first attempt. The
// generator never retries indefinitely; one backoff retry, then fallback.
const maxModelRetries = 1

// historyWindowSize bounds how many past decisions are embedded in the
// prompt to steer the model away from repeating prior choices.
const historyWindowSize = 5

const decisionPrompt = `You are the game master of a narrative role-playing session. Given the context below, produce ONE meaningful decision for the player.

Rules:
- The decision must follow naturally from the current situation.
- Offer between %d and %d distinct options with different consequences.
- Do not repeat any decision the player already faced (listed under PAST DECISIONS).
- Return ONLY a valid JSON object, no other text, in this shape:
{"prompt": "...", "importance": "minor|moderate|significant", "options": [{"text": "...", "impact": "..."}]}

SITUATION:
%s

CONTEXT:
%s

PAST DECISIONS:
%s`

// GenerationRequest carries everything a strategy needs to produce a
// decision for the current moment.
type GenerationRequest struct {
	Situation   entities.Situation
	ContextText string
	Recent      []entities.DecisionRecord
	Presented   int
	NowMs       int64
}

// generationStrategy is the common contract of the template, model, and
// hybrid modes, selected once at construction time.
type generationStrategy interface {
	generate(ctx context.Context, req GenerationRequest) (entities.Decision, error)
}

// GeneratorConfig holds the tunable generation surface.
type GeneratorConfig struct {
	Mode       entities.GenerationMode
	Timeout    time.Duration
	MinOptions int
	MaxOptions int
}

// Generator produces structured decisions. The active mode decides whether
// the language model is consulted at all and whether failures fall back to
// the template library or surface to the caller.
type Generator struct {
	strategy generationStrategy
	gate     *QualityGate
	mode     entities.GenerationMode
	logger   *zap.Logger

	templates *TemplateLibrary
}

// NewGenerator creates a generator for the configured mode. The llm client
// may be nil only in template mode.
func NewGenerator(cfg GeneratorConfig, llm ports.LLMClient, gate *QualityGate, logger *zap.Logger) (*Generator, error) {
	if cfg.Mode == "" {
		cfg.Mode = entities.ModeHybrid
	}
	if !cfg.Mode.IsValid() {
		return nil, &entities.ValidationError{Field: "generation_mode", Reason: fmt.Sprintf("unknown mode %q", cfg.Mode)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGenerationTimeout
	}
	if cfg.MinOptions <= 0 {
		cfg.MinOptions = DefaultMinOptions
	}
	if cfg.MaxOptions <= 0 {
		cfg.MaxOptions = DefaultMaxOptions
	}

	templates := NewTemplateLibrary()
	g := &Generator{
		gate:      gate,
		mode:      cfg.Mode,
		logger:    logger,
		templates: templates,
	}

	switch cfg.Mode {
	case entities.ModeTemplate:
		g.strategy = &templateStrategy{lib: templates}
	case entities.ModeModel, entities.ModeHybrid:
		if llm == nil {
			return nil, &entities.ValidationError{Field: "llm", Reason: fmt.Sprintf("%s mode requires a language-model client", cfg.Mode)}
		}
		g.strategy = &modelStrategy{llm: llm, cfg: cfg, logger: logger}
	}
	return g, nil
}

// Mode returns the active generation mode.
func (g *Generator) Mode() entities.GenerationMode {
	return g.mode
}

// Generate runs the active strategy and validates its output against the
// quality gate. Model failures and gate rejections route to the template
// fallback in hybrid mode; in model-only mode the typed error is surfaced
// for the host to display; template mode has no failure path at all.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (entities.Decision, error) {
	decision, err := g.strategy.generate(ctx, req)
	if err != nil {
		g.logger.Warn("model generation failed",
			zap.String("kind", string(entities.ServiceKind(err))),
			zap.Error(err))
		if g.mode == entities.ModeModel {
			return entities.Decision{}, err
		}
		return g.fallback(req), nil
	}

	g.logger.Debug("pipeline state", zap.String("state", string(StateValidating)))
	assessment := g.gate.Assess(decision, req.ContextText)
	if !assessment.Pass {
		g.logger.Info("decision rejected by quality gate",
			zap.Strings("issues", assessment.Issues),
			zap.Bool("ai_generated", decision.AIGenerated))
		if g.mode == entities.ModeModel {
			return entities.Decision{}, &entities.ExternalServiceError{
				Service: "llm",
				Kind:    entities.ServiceInvalidResponse,
				Err:     fmt.Errorf("quality gate rejected decision: %s", strings.Join(assessment.Issues, "; ")),
			}
		}
		if decision.AIGenerated {
			return g.fallback(req), nil
		}
	}

	return decision, nil
}

func (g *Generator) fallback(req GenerationRequest) entities.Decision {
	g.logger.Debug("pipeline state", zap.String("state", string(StateTemplateFallback)))
	return g.templates.Generate(req.Situation, req.Presented, req.NowMs)
}

// templateStrategy never consults the language model.
type templateStrategy struct {
	lib *TemplateLibrary
}

func (s *templateStrategy) generate(_ context.Context, req GenerationRequest) (entities.Decision, error) {
	return s.lib.Generate(req.Situation, req.Presented, req.NowMs), nil
}

// modelStrategy builds a prompt from the situation, assembled context, and
// recent decision history, then calls the model with a bounded timeout and
// at most one backoff retry.
type modelStrategy struct {
	llm    ports.LLMClient
	cfg    GeneratorConfig
	logger *zap.Logger
}

func (s *modelStrategy) generate(ctx context.Context, req GenerationRequest) (entities.Decision, error) {
	prompt := buildDecisionPrompt(req, s.cfg.MinOptions, s.cfg.MaxOptions)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxModelRetries), ctx)

	response, err := backoff.RetryWithData(func() (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		resp, callErr := s.llm.Generate(attemptCtx, prompt)
		if callErr != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(callErr)
			}
			return "", callErr
		}
		return resp, nil
	}, policy)
	if err != nil {
		return entities.Decision{}, err
	}

	return parseDecision(response, req)
}

func buildDecisionPrompt(req GenerationRequest, minOptions, maxOptions int) string {
	var situation strings.Builder
	fmt.Fprintf(&situation, "Location: %s\n", orUnknown(req.Situation.CurrentLocation))
	fmt.Fprintf(&situation, "Characters present: %s\n", orUnknown(strings.Join(req.Situation.ActiveCharacters, ", ")))
	fmt.Fprintf(&situation, "Combat active: %t", req.Situation.CombatActive)

	var past strings.Builder
	recent := req.Recent
	if len(recent) > historyWindowSize {
		recent = recent[len(recent)-historyWindowSize:]
	}
	if len(recent) == 0 {
		past.WriteString("(none)")
	}
	for _, rec := range recent {
		fmt.Fprintf(&past, "- %s -> chose %q\n", rec.Prompt, rec.SelectedText)
	}

	return fmt.Sprintf(decisionPrompt, minOptions, maxOptions,
		situation.String(), req.ContextText, strings.TrimRight(past.String(), "\n"))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// rawDecision is the JSON structure the model is asked to return.
type rawDecision struct {
	Prompt     string `json:"prompt"`
	Importance string `json:"importance"`
	Options    []struct {
		Text   string `json:"text"`
		Impact string `json:"impact"`
	} `json:"options"`
}

// parseDecision turns a model response into a decision. Non-parseable
// responses are an invalid_response service error so the caller can route
// them to the fallback path.
func parseDecision(response string, req GenerationRequest) (entities.Decision, error) {
	cleaned := cleanJSONResponse(response)

	var raw rawDecision
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return entities.Decision{}, &entities.ExternalServiceError{
			Service: "llm",
			Kind:    entities.ServiceInvalidResponse,
			Err:     fmt.Errorf("parsing decision JSON: %w", err),
		}
	}
	if strings.TrimSpace(raw.Prompt) == "" || len(raw.Options) == 0 {
		return entities.Decision{}, &entities.ExternalServiceError{
			Service: "llm",
			Kind:    entities.ServiceInvalidResponse,
			Err:     errors.New("decision missing prompt or options"),
		}
	}

	importance := entities.DecisionImportance(raw.Importance)
	switch importance {
	case entities.ImportanceMinor, entities.ImportanceModerate, entities.ImportanceSignificant:
	default:
		importance = entities.ImportanceModerate
	}

	options := make([]entities.DecisionOption, 0, len(raw.Options))
	for _, opt := range raw.Options {
		options = append(options, entities.DecisionOption{
			ID:     uuid.New().String(),
			Text:   strings.TrimSpace(opt.Text),
			Impact: strings.TrimSpace(opt.Impact),
		})
	}

	return entities.Decision{
		ID:          uuid.New().String(),
		Prompt:      strings.TrimSpace(raw.Prompt),
		Options:     options,
		Context:     contextSnippet(req.ContextText),
		Importance:  importance,
		Characters:  append([]string(nil), req.Situation.ActiveCharacters...),
		AIGenerated: true,
		TimestampMs: req.NowMs,
	}, nil
}

// cleanJSONResponse removes markdown code fences if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
