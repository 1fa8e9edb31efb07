package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StatusCompleted is reported for every run, including runs halted by a failing step.
// Callers detect a halt by inspecting the last log entry for an error.
const StatusCompleted = "completed"

// Step names the tool to dispatch to. Action is recorded in the log only and keeps whatever JSON
// value the plan carried.
type Step struct {
	Tool   string      `json:"tool"`
	Action interface{} `json:"action"`
}

// UnmarshalJSON never rejects a step. A non-string tool is kept as its compact JSON text so it
// resolves to the unknown-tool placeholder; an element that is not an object becomes a step
// whose tool is that element's JSON text.
func (s *Step) UnmarshalJSON(b []byte) error {
	*s = Step{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		s.Tool = compactJSON(b)
		return nil
	}
	if raw, ok := fields["tool"]; ok {
		if err := json.Unmarshal(raw, &s.Tool); err != nil {
			s.Tool = compactJSON(raw)
		}
	}
	if raw, ok := fields["action"]; ok {
		if err := json.Unmarshal(raw, &s.Action); err != nil {
			return fmt.Errorf("decode action: %w", err)
		}
	}
	return nil
}

func compactJSON(b []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return string(b)
	}
	return buf.String()
}

// Plan is an ordered list of steps produced by the planner or supplied by a caller.
type Plan struct {
	Steps []Step `json:"steps"`
}

// UnmarshalJSON treats a missing or non-list steps value as a plan with no steps.
func (p *Plan) UnmarshalJSON(b []byte) error {
	var raw struct {
		Steps json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Steps = nil
	var items []json.RawMessage
	if len(raw.Steps) == 0 || json.Unmarshal(raw.Steps, &items) != nil {
		return nil
	}
	p.Steps = make([]Step, 0, len(items))
	for i, item := range items {
		var s Step
		if err := json.Unmarshal(item, &s); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		p.Steps = append(p.Steps, s)
	}
	return nil
}

// PlanFromObject converts a loosely typed workflow object (as produced by the planner) into a Plan.
// Objects without a steps list yield an empty plan.
func PlanFromObject(obj map[string]interface{}) (Plan, error) {
	if obj == nil {
		return Plan{}, nil
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return Plan{}, fmt.Errorf("marshal workflow: %w", err)
	}
	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return Plan{}, fmt.Errorf("decode workflow: %w", err)
	}
	return p, nil
}

// Context maps a tool name to the most recent value that tool returned during a run.
type Context map[string]interface{}

// Outcome classifies how a step's dispatch ended.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeUnsupportedTool Outcome = "unsupported_tool"
	OutcomeConnectorFailed Outcome = "connector_failed"
)

// LogEntry records one dispatched step. A failed entry carries error and no result; every other
// entry carries result, even when it is null.
type LogEntry struct {
	Step    int         `json:"step"`
	Tool    string      `json:"tool"`
	Action  interface{} `json:"action"`
	Result  interface{} `json:"result"`
	Error   string      `json:"error"`
	Outcome Outcome     `json:"-"`
}

// Failed reports whether the entry recorded a connector failure.
func (e LogEntry) Failed() bool { return e.Outcome == OutcomeConnectorFailed }

func (e LogEntry) MarshalJSON() ([]byte, error) {
	if e.Failed() || (e.Outcome == "" && e.Error != "") {
		return json.Marshal(struct {
			Step   int         `json:"step"`
			Tool   string      `json:"tool"`
			Action interface{} `json:"action"`
			Error  string      `json:"error"`
		}{e.Step, e.Tool, e.Action, e.Error})
	}
	return json.Marshal(struct {
		Step   int         `json:"step"`
		Tool   string      `json:"tool"`
		Action interface{} `json:"action"`
		Result interface{} `json:"result"`
	}{e.Step, e.Tool, e.Action, e.Result})
}

// Result is the outcome of executing a plan.
type Result struct {
	Status        string     `json:"status"`
	StepsExecuted int        `json:"steps_executed"`
	Logs          []LogEntry `json:"logs"`
	FinalContext  Context    `json:"final_context"`

	RunID   string `json:"-"`
	Failure error  `json:"-"`
}

// Halted reports whether execution stopped before the end of the plan.
func (r Result) Halted() bool {
	if len(r.Logs) == 0 {
		return false
	}
	return r.Logs[len(r.Logs)-1].Failed()
}
