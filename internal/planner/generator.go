package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/flowpilot/internal/connector"
	"github.com/mohammad-safakhou/flowpilot/provider"
)

// EmptyGoalMessage is reported to callers that submit a blank goal.
const EmptyGoalMessage = "Goal cannot be empty."

// ErrEmptyGoal is returned before any provider call when the goal is blank.
var ErrEmptyGoal = errors.New("goal cannot be empty")

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.3
)

// Source says where a generated workflow came from.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Kind classifies a generation failure.
type Kind string

const (
	KindTransport      Kind = "transport"
	KindMalformed      Kind = "malformed_response"
	KindSchemaMismatch Kind = "schema_mismatch"
)

// GenerationError describes why the LLM output was not used as-is.
type GenerationError struct {
	Kind Kind
	Err  error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

func (e *GenerationError) Unwrap() error { return e.Err }

// Generation is the planner's answer for one goal.
//
// Workflow is the parsed completion verbatim, or the fallback plan. Failure is nil when the
// completion parsed and matched the plan schema. A schema mismatch keeps the verbatim workflow.
type Generation struct {
	Workflow map[string]interface{}
	Source   Source
	Failure  *GenerationError
}

// FallbackWorkflow returns the single-step plan used whenever the LLM cannot be used.
func FallbackWorkflow() map[string]interface{} {
	return map[string]interface{}{
		"steps": []interface{}{
			map[string]interface{}{"tool": connector.ToolSummarize, "action": "summarize"},
		},
	}
}

// Generator converts natural-language goals into workflow plans.
type Generator struct {
	llm         provider.Provider
	model       string
	temperature float64
	logger      *log.Logger
	tracer      trace.Tracer
	observe     func(Generation)
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithObserver registers a callback invoked after every non-empty-goal generation.
func WithObserver(fn func(Generation)) Option {
	return func(g *Generator) { g.observe = fn }
}

// NewGenerator creates a planner backed by llm.
func NewGenerator(llm provider.Provider, opts ...Option) *Generator {
	g := &Generator{
		llm:         llm,
		model:       defaultModel,
		temperature: defaultTemperature,
		logger:      log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
		tracer:      otel.Tracer("flowpilot/planner"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the LLM for a plan. Only a blank goal returns an error; every provider or
// parsing failure is folded into a fallback Generation.
func (g *Generator) Generate(ctx context.Context, goal string) (Generation, error) {
	if strings.TrimSpace(goal) == "" {
		return Generation{}, ErrEmptyGoal
	}

	ctx, span := g.tracer.Start(ctx, "planner.generate")
	defer span.End()

	gen := g.generate(ctx, goal)
	span.SetAttributes(attribute.String("plan.source", string(gen.Source)))
	if gen.Failure != nil {
		span.SetAttributes(attribute.String("plan.failure_kind", string(gen.Failure.Kind)))
		span.SetStatus(codes.Error, gen.Failure.Error())
	}
	if g.observe != nil {
		g.observe(gen)
	}
	return gen, nil
}

func (g *Generator) generate(ctx context.Context, goal string) Generation {
	if g.llm == nil {
		return g.fallback(&GenerationError{Kind: KindTransport, Err: errors.New("no LLM provider configured")})
	}

	text, err := g.llm.Generate(ctx, BuildPrompt(goal), provider.Options{Model: g.model, Temperature: g.temperature})
	if err != nil {
		return g.fallback(&GenerationError{Kind: KindTransport, Err: err})
	}

	doc, err := parseWorkflow(text)
	if err != nil {
		return g.fallback(&GenerationError{Kind: KindMalformed, Err: err})
	}

	gen := Generation{Workflow: doc, Source: SourceLLM}
	if err := ValidateWorkflow(doc); err != nil {
		gen.Failure = &GenerationError{Kind: KindSchemaMismatch, Err: err}
		g.logger.Printf("plan accepted with schema mismatch: %v", err)
	}
	return gen
}

func (g *Generator) fallback(failure *GenerationError) Generation {
	g.logger.Printf("LLM generation failed, using fallback plan: %v", failure)
	return Generation{Workflow: FallbackWorkflow(), Source: SourceFallback, Failure: failure}
}

// BuildPrompt renders the planning prompt for goal.
func BuildPrompt(goal string) string {
	return fmt.Sprintf(`You are a workflow planner that converts goals into step-based JSON workflows.
Each step uses one of these mock tools:
- %[1]s: fetch emails
- %[2]s: summarize content
- %[3]s: store or create pages

Example:
Goal: "Summarize today's emails and add to Notion"
Output:
{
    "steps": [
        {"tool": "%[1]s", "action": "fetch_emails"},
        {"tool": "%[2]s", "action": "summarize"},
        {"tool": "%[3]s", "action": "create_page"}
    ]
}

Now create a workflow for this goal:
"%[4]s"
Return ONLY a valid JSON object with 'steps' list.
`, connector.ToolEmailFetch, connector.ToolSummarize, connector.ToolPageCreate, goal)
}

// parseWorkflow decodes a completion into a JSON object, tolerating a surrounding code fence.
func parseWorkflow(text string) (map[string]interface{}, error) {
	cleaned := stripCodeFence(text)
	var v interface{}
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, fmt.Errorf("completion is not valid JSON: %w", err)
	}
	doc, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("completion is %T, not a JSON object", v)
	}
	return doc, nil
}

// stripCodeFence returns the content of the first ``` fence (up to the next fence or the end of
// the text) without its language tag. Text without a fence is returned trimmed.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}
	body := text[start+3:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return stripLanguageTag(strings.TrimSpace(body))
}

func stripLanguageTag(s string) string {
	if s == "" || !isLetter(s[0]) {
		return s
	}
	i := 1
	for i < len(s) && (isLetter(s[i]) || isDigit(s[i]) || s[i] == '-' || s[i] == '_' || s[i] == '+') {
		i++
	}
	rest := s[i:]
	if rest == "" {
		return ""
	}
	switch rest[0] {
	case '\n', '\r', ' ', '\t', '{', '[':
		return strings.TrimSpace(rest)
	}
	return s
}

func isLetter(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
