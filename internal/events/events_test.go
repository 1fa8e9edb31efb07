package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/mohammad-safakhou/flowpilot/internal/executor"
	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

var _ executor.Journal = (*StreamJournal)(nil)

type recordedEvent struct {
	eventType string
	runID     string
	payload   interface{}
}

type stubSink struct {
	events []recordedEvent
	err    error
}

func (s *stubSink) PublishRaw(ctx context.Context, eventType, runID string, payload interface{}) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.events = append(s.events, recordedEvent{eventType: eventType, runID: runID, payload: payload})
	return "1-0", nil
}

func TestEnvelopeValidateBasic(t *testing.T) {
	env := Envelope{EventID: "e1", EventType: EventWorkflowExecuted, RunID: "r1", PayloadVersion: PayloadVersion, Data: json.RawMessage(`{}`)}
	if err := env.ValidateBasic(); err != nil {
		t.Fatalf("ValidateBasic: %v", err)
	}
	if env.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be stamped")
	}

	missing := env
	missing.RunID = ""
	if err := missing.ValidateBasic(); err == nil {
		t.Fatalf("expected run_id error")
	}
	missing = env
	missing.Data = nil
	if err := missing.ValidateBasic(); err == nil {
		t.Fatalf("expected data error")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{
		EventID:        "e1",
		EventType:      EventWorkflowExecuted,
		OccurredAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		RunID:          "r1",
		PayloadVersion: PayloadVersion,
		Data:           json.RawMessage(`{"steps_executed":2}`),
	}
	raw, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalEnvelope(raw)
	if err != nil {
		t.Fatalf("UnmarshalEnvelope: %v", err)
	}
	if got.RunID != "r1" || !got.OccurredAt.Equal(env.OccurredAt) || string(got.Data) != `{"steps_executed":2}` {
		t.Fatalf("unexpected envelope %+v", got)
	}
	if _, err := UnmarshalEnvelope([]byte(`{"event_id":"x"}`)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSummarizeHaltedRun(t *testing.T) {
	res := workflow.Result{
		Status:        workflow.StatusCompleted,
		StepsExecuted: 2,
		Logs: []workflow.LogEntry{
			{Step: 1, Tool: "gmail_mock", Outcome: workflow.OutcomeOK, Result: "x"},
			{Step: 2, Tool: "llm_summarize", Outcome: workflow.OutcomeConnectorFailed, Error: "bad body"},
		},
	}
	s := Summarize(res)
	if !s.Halted || s.HaltedAt != "llm_summarize" || s.Error != "bad body" || len(s.Tools) != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestStreamJournalPublishesOnFinish(t *testing.T) {
	sink := &stubSink{}
	journal := NewStreamJournal(sink, log.New(io.Discard, "", 0))
	exec := executor.New(executor.WithJournal(journal), executor.WithLogger(log.New(io.Discard, "", 0)))

	res := exec.Execute(context.Background(), workflow.Plan{Steps: []workflow.Step{
		{Tool: "gmail_mock", Action: "fetch_emails"},
		{Tool: "llm_summarize", Action: "summarize"},
	}})

	if len(sink.events) != 1 {
		t.Fatalf("expected one event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.eventType != EventWorkflowExecuted || ev.runID != res.RunID {
		t.Fatalf("unexpected event %+v", ev)
	}
	summary, ok := ev.payload.(ExecutionSummary)
	if !ok {
		t.Fatalf("unexpected payload type %T", ev.payload)
	}
	if summary.StepsPlanned != 2 || summary.StepsExecuted != 2 || summary.Halted {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(journal.runs) != 0 {
		t.Fatalf("expected run state to be released")
	}
}

func TestStreamJournalPublishErrorDoesNotAffectRun(t *testing.T) {
	sink := &stubSink{err: errors.New("redis down")}
	journal := NewStreamJournal(sink, log.New(io.Discard, "", 0))
	if err := journal.FinishRun(context.Background(), "r1", workflow.Result{}); err == nil {
		t.Fatalf("expected publish error to be reported to the caller")
	}

	exec := executor.New(executor.WithJournal(journal), executor.WithLogger(log.New(io.Discard, "", 0)))
	res := exec.Execute(context.Background(), workflow.Plan{Steps: []workflow.Step{{Tool: "gmail_mock", Action: "fetch_emails"}}})
	if res.StepsExecuted != 1 || res.Halted() {
		t.Fatalf("journal failure must not change the run, got %+v", res)
	}
}

func TestPublisherRequiresStream(t *testing.T) {
	p := NewPublisher(nil, "", 0)
	if _, err := p.PublishRaw(context.Background(), EventWorkflowExecuted, "r1", map[string]int{}); err == nil {
		t.Fatalf("expected error for empty stream name")
	}
}
