package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventWorkflowExecuted is emitted once per run after the last dispatched step.
const (
	EventWorkflowExecuted = "workflow.executed"
	PayloadVersion        = "v1"
)

// Envelope wraps every event appended to the executions stream.
type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	OccurredAt     time.Time       `json:"occurred_at"`
	RunID          string          `json:"run_id"`
	PayloadVersion string          `json:"payload_version"`
	Data           json.RawMessage `json:"data"`
}

// ValidateBasic checks mandatory fields and stamps OccurredAt when unset.
func (e *Envelope) ValidateBasic() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("event_id is required")
	case e.EventType == "":
		return fmt.Errorf("event_type is required")
	case e.RunID == "":
		return fmt.Errorf("run_id is required")
	case e.PayloadVersion == "":
		return fmt.Errorf("payload_version is required")
	case len(e.Data) == 0:
		return fmt.Errorf("data payload is required")
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return nil
}

func (e *Envelope) Marshal() ([]byte, error) {
	if err := e.ValidateBasic(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// UnmarshalEnvelope decodes a stream entry and validates it.
func UnmarshalEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := env.ValidateBasic(); err != nil {
		return env, err
	}
	return env, nil
}

// ExecutionSummary is the payload of a workflow.executed event.
type ExecutionSummary struct {
	StepsPlanned  int      `json:"steps_planned"`
	StepsExecuted int      `json:"steps_executed"`
	Halted        bool     `json:"halted"`
	HaltedAt      string   `json:"halted_at,omitempty"`
	Error         string   `json:"error,omitempty"`
	Tools         []string `json:"tools"`
	DurationMS    int64    `json:"duration_ms"`
}
