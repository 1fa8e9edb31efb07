package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/flowpilot/internal/connector"
	"github.com/mohammad-safakhou/flowpilot/internal/executor"
	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

func executeCMD(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "execute [plan.json]",
		Short: "Execute a workflow file, or the sample inbox workflow when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := load(); err != nil {
				return err
			}
			plan := samplePlan()
			if len(args) == 1 {
				var err error
				if plan, err = loadPlan(args[0]); err != nil {
					return err
				}
			}

			res := executor.New().Execute(cmd.Context(), plan)
			if res.Halted() {
				fmt.Fprintf(cmd.ErrOrStderr(), "run halted: %v\n", res.Failure)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

// loadPlan reads a workflow object from path. Files holding a {"workflow": {...}} request body are accepted too.
func loadPlan(path string) (workflow.Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return workflow.Plan{}, fmt.Errorf("read plan: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return workflow.Plan{}, fmt.Errorf("decode plan %s: %w", path, err)
	}
	if inner, ok := doc["workflow"].(map[string]interface{}); ok {
		doc = inner
	}
	return workflow.PlanFromObject(doc)
}

func samplePlan() workflow.Plan {
	return workflow.Plan{Steps: []workflow.Step{
		{Tool: connector.ToolEmailFetch, Action: "fetch_emails"},
		{Tool: connector.ToolSummarize, Action: "summarize"},
		{Tool: connector.ToolPageCreate, Action: "create_page"},
	}}
}
