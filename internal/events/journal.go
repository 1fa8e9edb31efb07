package events

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

// Sink receives execution events. *Publisher satisfies it.
type Sink interface {
	PublishRaw(ctx context.Context, eventType, runID string, payload interface{}) (string, error)
}

// StreamJournal records run progress and emits a workflow.executed event when a run finishes.
// Publishing errors are logged and returned to the caller, which treats them as advisory.
type StreamJournal struct {
	sink   Sink
	logger *log.Logger

	mu   sync.Mutex
	runs map[string]runState
}

type runState struct {
	started time.Time
	planned int
}

// NewStreamJournal creates a StreamJournal. A nil logger uses the [EVENTS] prefix.
func NewStreamJournal(sink Sink, logger *log.Logger) *StreamJournal {
	if logger == nil {
		logger = log.New(log.Writer(), "[EVENTS] ", log.LstdFlags)
	}
	return &StreamJournal{sink: sink, logger: logger, runs: make(map[string]runState)}
}

func (j *StreamJournal) StartRun(ctx context.Context, runID string, plan workflow.Plan) error {
	j.mu.Lock()
	j.runs[runID] = runState{started: time.Now(), planned: len(plan.Steps)}
	j.mu.Unlock()
	return nil
}

func (j *StreamJournal) SaveStepStart(ctx context.Context, runID string, index int, step workflow.Step) error {
	return nil
}

func (j *StreamJournal) SaveStepSuccess(ctx context.Context, runID string, entry workflow.LogEntry) error {
	return nil
}

func (j *StreamJournal) SaveStepFailure(ctx context.Context, runID string, entry workflow.LogEntry, err error) error {
	return nil
}

func (j *StreamJournal) FinishRun(ctx context.Context, runID string, result workflow.Result) error {
	j.mu.Lock()
	state, ok := j.runs[runID]
	delete(j.runs, runID)
	j.mu.Unlock()

	summary := Summarize(result)
	if ok {
		summary.StepsPlanned = state.planned
		summary.DurationMS = time.Since(state.started).Milliseconds()
	}
	id, err := j.sink.PublishRaw(ctx, EventWorkflowExecuted, runID, summary)
	if err != nil {
		j.logger.Printf("publish %s for run %s: %v", EventWorkflowExecuted, runID, err)
		return err
	}
	j.logger.Printf("published %s for run %s as %s", EventWorkflowExecuted, runID, id)
	return nil
}

// Summarize builds the event payload for a finished run. StepsPlanned and DurationMS are left zero.
func Summarize(result workflow.Result) ExecutionSummary {
	s := ExecutionSummary{
		StepsExecuted: result.StepsExecuted,
		Halted:        result.Halted(),
		Tools:         make([]string, 0, len(result.Logs)),
	}
	for _, entry := range result.Logs {
		s.Tools = append(s.Tools, entry.Tool)
	}
	if s.Halted {
		last := result.Logs[len(result.Logs)-1]
		s.HaltedAt = last.Tool
		s.Error = last.Error
	}
	return s
}
