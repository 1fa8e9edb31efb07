package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/flowpilot/internal/planner"
	"github.com/mohammad-safakhou/flowpilot/provider"
)

func planCMD(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [goal...]",
		Short: "Generate a workflow for a goal and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			goal := strings.Join(args, " ")
			if goal == "" {
				goal, err = promptGoal(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}

			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			gen := planner.NewGenerator(llm, planner.WithModel(cfg.LLM.Model), planner.WithTemperature(cfg.LLM.Temperature))
			out, err := gen.Generate(cmd.Context(), goal)
			doc := out.Workflow
			if errors.Is(err, planner.ErrEmptyGoal) {
				doc = map[string]interface{}{"error": planner.EmptyGoalMessage}
			} else if err != nil {
				return err
			} else if out.Failure != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "source=%s diagnostic=%s\n", out.Source, out.Failure.Kind)
			}
			return writeJSON(cmd.OutOrStdout(), doc)
		},
	}
}

func promptGoal(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter your goal: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read goal: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
