package executor

import (
	"context"
	"log"

	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

// Journal observes run progress. Journal errors are logged and never alter a run.
type Journal interface {
	StartRun(ctx context.Context, runID string, plan workflow.Plan) error
	SaveStepStart(ctx context.Context, runID string, index int, step workflow.Step) error
	SaveStepSuccess(ctx context.Context, runID string, entry workflow.LogEntry) error
	SaveStepFailure(ctx context.Context, runID string, entry workflow.LogEntry, err error) error
	FinishRun(ctx context.Context, runID string, result workflow.Result) error
}

// NoopJournal is a default implementation that records nothing.
type NoopJournal struct{}

// NewNoopJournal returns a journal that does nothing.
func NewNoopJournal() *NoopJournal { return &NoopJournal{} }

func (NoopJournal) StartRun(ctx context.Context, runID string, plan workflow.Plan) error { return nil }
func (NoopJournal) SaveStepStart(ctx context.Context, runID string, index int, step workflow.Step) error {
	return nil
}
func (NoopJournal) SaveStepSuccess(ctx context.Context, runID string, entry workflow.LogEntry) error {
	return nil
}
func (NoopJournal) SaveStepFailure(ctx context.Context, runID string, entry workflow.LogEntry, err error) error {
	return nil
}
func (NoopJournal) FinishRun(ctx context.Context, runID string, result workflow.Result) error {
	return nil
}

// MultiJournal fans out to several journals, returning the first error.
type MultiJournal []Journal

func (m MultiJournal) StartRun(ctx context.Context, runID string, plan workflow.Plan) error {
	var first error
	for _, j := range m {
		if err := j.StartRun(ctx, runID, plan); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiJournal) SaveStepStart(ctx context.Context, runID string, index int, step workflow.Step) error {
	var first error
	for _, j := range m {
		if err := j.SaveStepStart(ctx, runID, index, step); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiJournal) SaveStepSuccess(ctx context.Context, runID string, entry workflow.LogEntry) error {
	var first error
	for _, j := range m {
		if err := j.SaveStepSuccess(ctx, runID, entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiJournal) SaveStepFailure(ctx context.Context, runID string, entry workflow.LogEntry, stepErr error) error {
	var first error
	for _, j := range m {
		if err := j.SaveStepFailure(ctx, runID, entry, stepErr); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiJournal) FinishRun(ctx context.Context, runID string, result workflow.Result) error {
	var first error
	for _, j := range m {
		if err := j.FinishRun(ctx, runID, result); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogJournal writes a line per journal event. Runs are traced this way when the log level is debug.
type LogJournal struct {
	logger *log.Logger
}

// NewLogJournal creates a LogJournal. A nil logger uses the [JOURNAL] prefix.
func NewLogJournal(logger *log.Logger) *LogJournal {
	if logger == nil {
		logger = log.New(log.Writer(), "[JOURNAL] ", log.LstdFlags)
	}
	return &LogJournal{logger: logger}
}

func (j *LogJournal) StartRun(ctx context.Context, runID string, plan workflow.Plan) error {
	j.logger.Printf("run %s: started with %d steps", runID, len(plan.Steps))
	return nil
}

func (j *LogJournal) SaveStepStart(ctx context.Context, runID string, index int, step workflow.Step) error {
	j.logger.Printf("run %s: step %d %s (%v) dispatching", runID, index, step.Tool, step.Action)
	return nil
}

func (j *LogJournal) SaveStepSuccess(ctx context.Context, runID string, entry workflow.LogEntry) error {
	j.logger.Printf("run %s: step %d %s %s", runID, entry.Step, entry.Tool, entry.Outcome)
	return nil
}

func (j *LogJournal) SaveStepFailure(ctx context.Context, runID string, entry workflow.LogEntry, err error) error {
	j.logger.Printf("run %s: step %d %s failed: %v", runID, entry.Step, entry.Tool, err)
	return nil
}

func (j *LogJournal) FinishRun(ctx context.Context, runID string, result workflow.Result) error {
	j.logger.Printf("run %s: finished after %d steps (halted=%t)", runID, result.StepsExecuted, result.Halted())
	return nil
}
