package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowgate/flowgate/engine/breakpoint"
	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/engine/runner"
	"github.com/flowgate/flowgate/engine/task/filetask"
	"github.com/flowgate/flowgate/engine/workflow"
	"github.com/flowgate/flowgate/pkg/config"
	"github.com/flowgate/flowgate/pkg/logger"
)

func RunCmd() *cobra.Command {
	var detach bool
	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Execute a workflow declaration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			wf, err := workflow.Load(ctx, args[0])
			if err != nil {
				return err
			}
			presenter := promptPresenter(cmd)
			if detach {
				presenter = breakpoint.Detached()
			}
			ctx = logger.ContextWithLogger(ctx, log)
			r, err := buildRunner(ctx, cfg, wf, presenter, log)
			if err != nil {
				return err
			}
			result, err := r.Run(ctx)
			if errors.Is(err, runner.ErrSuspended) {
				fmt.Fprintln(cmd.OutOrStdout(),
					"run suspended; resolve it with `flowgate resume` or the decision API")
				return nil
			}
			if err != nil {
				return err
			}
			return printResult(cmd, result)
		},
	}
	cmd.Flags().BoolVar(&detach, "detach", false,
		"suspend at breakpoints instead of prompting on the terminal")
	return cmd
}

func buildRunner(
	ctx context.Context,
	cfg *config.Config,
	wf *workflow.Config,
	presenter breakpoint.Presenter,
	log logger.Logger,
) (*runner.Runner, error) {
	invoker := filetask.New(cfg.Runtime.TasksDir,
		filetask.WithTimeout(cfg.Runtime.InvokeTimeout),
		filetask.WithPollInterval(cfg.Runtime.PollInterval),
	)
	return runner.New(ctx, runner.Options{
		Workflow:    wf,
		Invoker:     invoker,
		Presenter:   presenter,
		Store:       breakpoint.NewStore(cfg.Runtime.StoreDir),
		Logger:      log,
		BackoffBase: cfg.Runtime.BackoffBase,
	})
}

// promptPresenter collects a breakpoint decision from the terminal:
// "approve", "reject <reason>" or "modify <json payload>".
func promptPresenter(cmd *cobra.Command) breakpoint.Presenter {
	return breakpoint.PresenterFunc(func(_ context.Context, bp *breakpoint.Breakpoint) (*breakpoint.Decision, error) {
		out := cmd.OutOrStdout()
		if bp.Title != "" {
			fmt.Fprintf(out, "\n== %s ==\n", bp.Title)
		}
		for _, a := range bp.Context.Artifacts {
			fmt.Fprintf(out, "  artifact: %s\n", a.Path)
		}
		for key, value := range bp.Context.Summary {
			fmt.Fprintf(out, "  %s: %v\n", key, value)
		}
		fmt.Fprintf(out, "%s [approve/reject <reason>/modify <json>]: ", bp.Question)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if !scanner.Scan() {
			return nil, breakpoint.ErrAwaitingDecision
		}
		return parseDecision(scanner.Text())
	})
}

func parseDecision(line string) (*breakpoint.Decision, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch strings.ToLower(verb) {
	case "approve", "a", "yes", "y":
		return &breakpoint.Decision{Action: breakpoint.ActionApprove}, nil
	case "reject", "r", "no", "n":
		return &breakpoint.Decision{Action: breakpoint.ActionReject, Reason: strings.TrimSpace(rest)}, nil
	case "modify", "m":
		payload := core.Input{}
		if err := json.Unmarshal([]byte(rest), &payload); err != nil {
			return nil, fmt.Errorf("modify payload must be a JSON object: %w", err)
		}
		return &breakpoint.Decision{Action: breakpoint.ActionModify, Payload: payload}, nil
	}
	return nil, fmt.Errorf("unrecognized decision %q", verb)
}

func printResult(cmd *cobra.Command, result *runner.Result) error {
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return nil
}
