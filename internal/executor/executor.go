package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/flowpilot/internal/connector"
	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

// ErrConnectorFailed marks a run halted by a connector error.
var ErrConnectorFailed = errors.New("connector failed")

// StepError identifies the step that halted a run.
type StepError struct {
	Step int
	Tool string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Tool, e.Err)
}

func (e *StepError) Unwrap() []error { return []error{ErrConnectorFailed, e.Err} }

// Metrics aggregates optional telemetry callbacks.
type Metrics struct {
	StepDuration func(ctx context.Context, tool string, outcome workflow.Outcome, d time.Duration)
	RunFinished  func(ctx context.Context, result workflow.Result)
}

// Executor runs plan steps in order against a connector registry.
type Executor struct {
	registry *connector.Registry
	journal  Journal
	metrics  Metrics
	logger   *log.Logger
	tracer   trace.Tracer
}

// Option configures executor behaviour.
type Option func(*Executor)

// WithRegistry sets the connectors steps are dispatched to.
func WithRegistry(reg *connector.Registry) Option {
	return func(ex *Executor) {
		ex.registry = reg
	}
}

// WithJournal sets the journal implementation.
func WithJournal(j Journal) Option {
	return func(ex *Executor) {
		ex.journal = j
	}
}

// WithMetrics sets executor metrics callbacks.
func WithMetrics(m Metrics) Option {
	return func(ex *Executor) {
		ex.metrics = m
	}
}

// WithLogger sets the executor logger.
func WithLogger(l *log.Logger) Option {
	return func(ex *Executor) {
		if l != nil {
			ex.logger = l
		}
	}
}

// New creates a new Executor instance. Without WithRegistry the default mock connectors are used.
func New(opts ...Option) *Executor {
	ex := &Executor{
		logger: log.New(log.Writer(), "[EXEC] ", log.LstdFlags),
		tracer: otel.Tracer("flowpilot/executor"),
	}
	for _, opt := range opts {
		opt(ex)
	}
	if ex.registry == nil {
		ex.registry = connector.Default()
	}
	if ex.journal == nil {
		ex.journal = NewNoopJournal()
	}
	return ex
}

// Execute runs plan steps in order, threading each tool's output into a shared context. The first
// connector error halts the run; the partial log and context are still returned and the status
// stays "completed". Unknown tools yield a placeholder result and do not halt.
func (e *Executor) Execute(ctx context.Context, plan workflow.Plan) workflow.Result {
	runID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "executor.execute", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("plan.steps", len(plan.Steps)),
	))
	defer span.End()

	res := workflow.Result{
		Status:       workflow.StatusCompleted,
		Logs:         make([]workflow.LogEntry, 0, len(plan.Steps)),
		FinalContext: workflow.Context{},
		RunID:        runID,
	}
	e.logger.Printf("run %s: executing %d steps", runID, len(plan.Steps))
	e.note(e.journal.StartRun(ctx, runID, plan))

	for i, step := range plan.Steps {
		index := i + 1
		entry, err := e.runStep(ctx, runID, index, step, res.FinalContext)
		res.Logs = append(res.Logs, entry)
		if err != nil {
			res.Failure = &StepError{Step: index, Tool: step.Tool, Err: err}
			e.logger.Printf("run %s: error executing step %d %s: %v", runID, index, step.Tool, err)
			e.note(e.journal.SaveStepFailure(ctx, runID, entry, err))
			span.SetStatus(codes.Error, res.Failure.Error())
			break
		}
		res.FinalContext[step.Tool] = entry.Result
		e.logger.Printf("run %s: executed step %d %s", runID, index, step.Tool)
		e.note(e.journal.SaveStepSuccess(ctx, runID, entry))
	}

	res.StepsExecuted = len(res.Logs)
	span.SetAttributes(attribute.Int("run.steps_executed", res.StepsExecuted), attribute.Bool("run.halted", res.Halted()))
	e.note(e.journal.FinishRun(ctx, runID, res))
	if e.metrics.RunFinished != nil {
		e.metrics.RunFinished(ctx, res)
	}
	return res
}

func (e *Executor) runStep(ctx context.Context, runID string, index int, step workflow.Step, execCtx workflow.Context) (workflow.LogEntry, error) {
	entry := workflow.LogEntry{Step: index, Tool: step.Tool, Action: step.Action}
	ctx, span := e.tracer.Start(ctx, "executor.step", trace.WithAttributes(
		attribute.Int("step.index", index),
		attribute.String("step.tool", step.Tool),
		attribute.String("step.action", fmt.Sprint(step.Action)),
	))
	defer span.End()

	e.note(e.journal.SaveStepStart(ctx, runID, index, step))
	start := time.Now()

	conn, known := e.registry.Lookup(step.Tool)
	out, err := e.dispatch(ctx, conn, execCtx)
	switch {
	case err != nil:
		entry.Outcome = workflow.OutcomeConnectorFailed
		entry.Error = err.Error()
		if entry.Error == "" {
			entry.Error = ErrConnectorFailed.Error()
		}
		span.SetStatus(codes.Error, err.Error())
	case !known:
		entry.Outcome = workflow.OutcomeUnsupportedTool
		entry.Result = out
	default:
		entry.Outcome = workflow.OutcomeOK
		entry.Result = out
	}
	span.SetAttributes(attribute.String("step.outcome", string(entry.Outcome)))

	if e.metrics.StepDuration != nil {
		e.metrics.StepDuration(ctx, step.Tool, entry.Outcome, time.Since(start))
	}
	return entry, err
}

// dispatch invokes the connector, converting a cancelled context or a panic into an error.
func (e *Executor) dispatch(ctx context.Context, conn connector.Connector, execCtx workflow.Context) (out interface{}, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("connector %s panicked: %v", conn.Name(), r)
		}
	}()
	return conn.Run(ctx, execCtx)
}

func (e *Executor) note(err error) {
	if err != nil {
		e.logger.Printf("journal: %v", err)
	}
}
