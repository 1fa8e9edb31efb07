package connector

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// plainText strips every HTML element so page bodies are stored as plain text.
func plainText(s string) string {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

// PageCreator simulates writing a note page from whatever the run has produced so far.
type PageCreator struct {
	logger *log.Logger
}

func NewPageCreator() *PageCreator {
	return &PageCreator{logger: log.New(log.Writer(), "[NOTION] ", log.LstdFlags)}
}

func (p *PageCreator) Name() string { return ToolPageCreate }

func (p *PageCreator) Run(ctx context.Context, execCtx workflow.Context) (interface{}, error) {
	content := pageContent(execCtx)
	p.logger.Printf("created page (%d chars)", len(content))
	if content == "" {
		return "Page created in Notion (empty page).", nil
	}
	return fmt.Sprintf("Page created in Notion with content: %s", content), nil
}

// pageContent prefers the summary; otherwise it lists which tools contributed output.
func pageContent(execCtx workflow.Context) string {
	if s, ok := execCtx[ToolSummarize].(string); ok && s != "" {
		return plainText(s)
	}
	if len(execCtx) == 0 {
		return ""
	}
	tools := make([]string, 0, len(execCtx))
	for tool := range execCtx {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	return plainText("outputs from " + strings.Join(tools, ", "))
}
