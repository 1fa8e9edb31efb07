package connector

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

const (
	summaryPrefix = "Summary: "
	summaryLimit  = 80
)

// Summarizer joins the bodies of previously fetched emails into a short summary.
type Summarizer struct {
	logger *log.Logger
}

func NewSummarizer() *Summarizer {
	return &Summarizer{logger: log.New(log.Writer(), "[SUMMARIZE] ", log.LstdFlags)}
}

func (s *Summarizer) Name() string { return ToolSummarize }

func (s *Summarizer) Run(ctx context.Context, execCtx workflow.Context) (interface{}, error) {
	bodies, err := emailBodies(execCtx[ToolEmailFetch])
	if err != nil {
		return nil, err
	}
	joined := []rune(strings.Join(bodies, " "))
	if len(joined) > summaryLimit {
		joined = joined[:summaryLimit]
	}
	s.logger.Printf("summarized %d emails", len(bodies))
	return summaryPrefix + string(joined) + "...", nil
}

// emailBodies extracts body text from the email fetcher's output. Records arrive either typed
// (in-process runs) or as decoded JSON objects.
func emailBodies(v interface{}) ([]string, error) {
	switch records := v.(type) {
	case nil:
		return nil, nil
	case []Email:
		out := make([]string, 0, len(records))
		for _, e := range records {
			out = append(out, e.Body)
		}
		return out, nil
	case []map[string]interface{}:
		out := make([]string, 0, len(records))
		for i, rec := range records {
			body, err := bodyOf(i, rec)
			if err != nil {
				return nil, err
			}
			out = append(out, body)
		}
		return out, nil
	case []interface{}:
		out := make([]string, 0, len(records))
		for i, item := range records {
			switch rec := item.(type) {
			case Email:
				out = append(out, rec.Body)
			case map[string]interface{}:
				body, err := bodyOf(i, rec)
				if err != nil {
					return nil, err
				}
				out = append(out, body)
			default:
				return nil, fmt.Errorf("email %d: unexpected record type %T", i, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s output has unexpected type %T", ToolEmailFetch, v)
	}
}

func bodyOf(i int, rec map[string]interface{}) (string, error) {
	raw, ok := rec["body"]
	if !ok {
		return "", fmt.Errorf("email %d: missing body", i)
	}
	body, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("email %d: body is %T, not a string", i, raw)
	}
	return body, nil
}
