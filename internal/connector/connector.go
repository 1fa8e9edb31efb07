package connector

import (
	"context"
	"fmt"
	"sort"

	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

// Tool names understood by the default registry.
const (
	ToolEmailFetch = "gmail_mock"
	ToolSummarize  = "llm_summarize"
	ToolPageCreate = "notion_mock"
)

// Connector implements one tool. Run receives the execution context accumulated so far and
// must treat it as read-only.
type Connector interface {
	Name() string
	Run(ctx context.Context, execCtx workflow.Context) (interface{}, error)
}

// Registry is a closed mapping from tool name to connector.
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry builds a registry from the given connectors. Duplicate names are rejected.
func NewRegistry(connectors ...Connector) (*Registry, error) {
	reg := &Registry{connectors: make(map[string]Connector, len(connectors))}
	for _, c := range connectors {
		if c == nil {
			continue
		}
		if _, ok := reg.connectors[c.Name()]; ok {
			return nil, fmt.Errorf("connector %q registered twice", c.Name())
		}
		reg.connectors[c.Name()] = c
	}
	return reg, nil
}

// Default returns the registry with the three mock integrations.
func Default() *Registry {
	reg, _ := NewRegistry(NewEmailFetcher(), NewSummarizer(), NewPageCreator())
	return reg
}

// Lookup returns the connector for tool. Unrecognized names resolve to an Unknown connector and
// ok is false.
func (r *Registry) Lookup(tool string) (Connector, bool) {
	if r != nil {
		if c, ok := r.connectors[tool]; ok {
			return c, true
		}
	}
	return Unknown{Tool: tool}, false
}

// Names lists registered tool names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unknown stands in for tools that are not registered. It never fails.
type Unknown struct {
	Tool string
}

func (u Unknown) Name() string { return u.Tool }

func (u Unknown) Run(ctx context.Context, execCtx workflow.Context) (interface{}, error) {
	return fmt.Sprintf("⚠️ Unknown tool: %s", u.Tool), nil
}
