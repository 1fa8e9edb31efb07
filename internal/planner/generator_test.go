package planner

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/flowpilot/provider"
)

type stubProvider struct {
	calls  int
	prompt string
	opts   provider.Options
	reply  string
	err    error
}

func (s *stubProvider) Generate(ctx context.Context, prompt string, opts provider.Options) (string, error) {
	s.calls++
	s.prompt = prompt
	s.opts = opts
	return s.reply, s.err
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestGenerator(p provider.Provider, opts ...Option) *Generator {
	return NewGenerator(p, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func TestGenerateRejectsEmptyGoalWithoutCallingProvider(t *testing.T) {
	stub := &stubProvider{reply: `{"steps":[]}`}
	gen := newTestGenerator(stub)
	for _, goal := range []string{"", "   ", "\n\t"} {
		if _, err := gen.Generate(context.Background(), goal); !errors.Is(err, ErrEmptyGoal) {
			t.Fatalf("goal %q: expected ErrEmptyGoal, got %v", goal, err)
		}
	}
	if stub.calls != 0 {
		t.Fatalf("expected no provider calls, got %d", stub.calls)
	}
}

func TestGenerateParsesPlainJSON(t *testing.T) {
	stub := &stubProvider{reply: `{"steps":[{"tool":"gmail_mock","action":"fetch_emails"},{"tool":"llm_summarize","action":"summarize"}]}`}
	gen := newTestGenerator(stub)

	out, err := gen.Generate(context.Background(), "Summarize my emails")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Source != SourceLLM || out.Failure != nil {
		t.Fatalf("expected clean llm generation, got %+v", out)
	}
	steps, _ := out.Workflow["steps"].([]interface{})
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %v", out.Workflow)
	}
	if stub.opts.Temperature != 0.3 || stub.opts.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected call options %+v", stub.opts)
	}
}

func TestGenerateStripsCodeFence(t *testing.T) {
	stub := &stubProvider{reply: "Here you go:\n```json\n{\"steps\":[{\"tool\":\"notion_mock\",\"action\":\"create_page\"}]}\n```\nDone."}
	out, err := newTestGenerator(stub).Generate(context.Background(), "make a note")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Source != SourceLLM {
		t.Fatalf("expected llm source, got %+v", out)
	}
	steps := out.Workflow["steps"].([]interface{})
	if steps[0].(map[string]interface{})["tool"] != "notion_mock" {
		t.Fatalf("unexpected workflow %v", out.Workflow)
	}
}

func TestGenerateFallsBackOnProviderError(t *testing.T) {
	stub := &stubProvider{err: errors.New("connection refused")}
	out, err := newTestGenerator(stub).Generate(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	assertFallback(t, out, KindTransport)
}

func TestGenerateFallsBackOnMissingAPIKey(t *testing.T) {
	stub := &stubProvider{err: provider.ErrMissingAPIKey}
	out, _ := newTestGenerator(stub).Generate(context.Background(), "anything")
	assertFallback(t, out, KindTransport)
	if !errors.Is(out.Failure, provider.ErrMissingAPIKey) {
		t.Fatalf("expected failure to wrap ErrMissingAPIKey, got %v", out.Failure)
	}
}

func TestGenerateFallsBackOnMalformedJSON(t *testing.T) {
	for _, reply := range []string{"not json at all", "```json\n{\"steps\": [\n```", `["gmail_mock"]`, ""} {
		stub := &stubProvider{reply: reply}
		out, _ := newTestGenerator(stub).Generate(context.Background(), "anything")
		assertFallback(t, out, KindMalformed)
	}
}

func TestGenerateFallsBackWithoutProvider(t *testing.T) {
	out, _ := newTestGenerator(nil).Generate(context.Background(), "anything")
	assertFallback(t, out, KindTransport)
}

func TestGenerateKeepsSchemaMismatchVerbatim(t *testing.T) {
	stub := &stubProvider{reply: `{"plan":"no steps here"}`}
	out, err := newTestGenerator(stub).Generate(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Source != SourceLLM {
		t.Fatalf("expected verbatim llm workflow, got source %s", out.Source)
	}
	if out.Failure == nil || out.Failure.Kind != KindSchemaMismatch {
		t.Fatalf("expected schema mismatch diagnostic, got %+v", out.Failure)
	}
	if out.Workflow["plan"] != "no steps here" {
		t.Fatalf("expected workflow passed through, got %v", out.Workflow)
	}
	if _, ok := out.Workflow["steps"]; ok {
		t.Fatalf("workflow must not be modified")
	}
}

func TestGenerateObserverSeesEveryGeneration(t *testing.T) {
	var seen []Source
	stub := &stubProvider{err: errors.New("down")}
	gen := newTestGenerator(stub, WithObserver(func(g Generation) { seen = append(seen, g.Source) }))
	_, _ = gen.Generate(context.Background(), "x")
	_, _ = gen.Generate(context.Background(), " ")
	if len(seen) != 1 || seen[0] != SourceFallback {
		t.Fatalf("unexpected observations %v", seen)
	}
}

func TestBuildPromptEmbedsGoalAndTools(t *testing.T) {
	p := BuildPrompt("Archive invoices")
	for _, want := range []string{`"Archive invoices"`, "gmail_mock", "llm_summarize", "notion_mock", "Return ONLY a valid JSON object"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `  {"steps":[]}  `, `{"steps":[]}`},
		{"json tag", "```json\n{\"steps\":[]}\n```", `{"steps":[]}`},
		{"no tag", "```\n{\"steps\":[]}\n```", `{"steps":[]}`},
		{"tag glued to brace", "```json{\"steps\":[]}```", `{"steps":[]}`},
		{"unterminated", "```json\n{\"steps\":[]}", `{"steps":[]}`},
		{"prose around", "Sure!\n```JSON\n{\"a\":1}\n```\nbye", `{"a":1}`},
		{"first pair only", "```\n{\"a\":1}\n```\n```\n{\"b\":2}\n```", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestFallbackWorkflowIsFresh(t *testing.T) {
	a := FallbackWorkflow()
	a["steps"] = nil
	b := FallbackWorkflow()
	if steps, _ := b["steps"].([]interface{}); len(steps) != 1 {
		t.Fatalf("fallback workflow shared state: %v", b)
	}
}

func assertFallback(t *testing.T, out Generation, kind Kind) {
	t.Helper()
	if out.Source != SourceFallback {
		t.Fatalf("expected fallback source, got %s", out.Source)
	}
	if out.Failure == nil || out.Failure.Kind != kind {
		t.Fatalf("expected failure kind %s, got %+v", kind, out.Failure)
	}
	steps, _ := out.Workflow["steps"].([]interface{})
	if len(steps) != 1 {
		t.Fatalf("expected single fallback step, got %v", out.Workflow)
	}
	step := steps[0].(map[string]interface{})
	if step["tool"] != "llm_summarize" || step["action"] != "summarize" {
		t.Fatalf("unexpected fallback step %v", step)
	}
}
