package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowgate/flowgate/engine/breakpoint"
	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/engine/workflow"
	"github.com/flowgate/flowgate/pkg/logger"
)

func ResumeCmd() *cobra.Command {
	var (
		workflowPath string
		action       string
		reason       string
		payload      string
	)
	cmd := &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Resume a suspended run with a breakpoint decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			runID, err := core.ParseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}
			ctx := logger.ContextWithLogger(cmd.Context(), log)
			wf, err := workflow.Load(ctx, workflowPath)
			if err != nil {
				return err
			}
			decision, err := flagDecision(action, reason, payload)
			if err != nil {
				return err
			}
			r, err := buildRunner(ctx, cfg, wf, breakpoint.Detached(), log)
			if err != nil {
				return err
			}
			result, err := r.Resume(ctx, runID, decision)
			if err != nil {
				return err
			}
			return printResult(cmd, result)
		},
	}
	cmd.Flags().StringVar(&workflowPath, "workflow", "", "path to the workflow declaration")
	cmd.Flags().StringVar(&action, "action", "",
		"decision to apply: approve, reject or modify (omit to use one already recorded)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason attached to a reject decision")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON object attached to a modify decision")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}

// flagDecision turns the --action flags into a decision; an empty action
// means resume with whatever decision the API already recorded.
func flagDecision(action, reason, payload string) (*breakpoint.Decision, error) {
	if action == "" {
		return nil, nil
	}
	decision := &breakpoint.Decision{
		Action: breakpoint.Action(strings.ToLower(action)),
		Reason: reason,
	}
	if payload != "" {
		decision.Payload = core.Input{}
		if err := json.Unmarshal([]byte(payload), &decision.Payload); err != nil {
			return nil, fmt.Errorf("invalid --payload: %w", err)
		}
	}
	if err := decision.Validate(); err != nil {
		return nil, err
	}
	return decision, nil
}
