package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowgate/flowgate/engine/artifact"
	"github.com/flowgate/flowgate/engine/breakpoint"
	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/engine/gate"
	"github.com/flowgate/flowgate/engine/runtime"
	"github.com/flowgate/flowgate/engine/task"
	"github.com/flowgate/flowgate/engine/workflow"
	"github.com/flowgate/flowgate/pkg/logger"
)

// ErrSuspended reports that the run reached a breakpoint with a detached
// presenter: the snapshot is durable and the run resumes via Resume once a
// decision exists.
var ErrSuspended = errors.New("run suspended awaiting decision")

// Result is the terminal value of one workflow execution. Every run ends
// in one of these, success or not; failures are differentiated by the
// metadata, never by a raised error.
type Result struct {
	RunID      core.ID             `json:"run_id"`
	Success    bool                `json:"success"`
	Score      *float64            `json:"score,omitempty"`
	QualityMet *bool               `json:"quality_met,omitempty"`
	Artifacts  []artifact.Artifact `json:"artifacts"`
	DurationMs int64               `json:"duration_ms"`
	Metadata   map[string]any      `json:"metadata,omitempty"`
}

// Options wire a runner together. Workflow and Invoker are required; the
// presenter defaults to auto-approve and the store to the local run dir.
type Options struct {
	Workflow    *workflow.Config
	Invoker     task.Invoker
	Presenter   breakpoint.Presenter
	Store       *breakpoint.Store
	Logger      logger.Logger
	BackoffBase time.Duration
}

// Runner executes one declared workflow at a time: it owns the run
// context, drives the composer phase by phase, suspends at declared
// breakpoints, applies the quality gate and compiles the final manifest.
type Runner struct {
	cfg        *workflow.Config
	registry   *task.Registry
	executor   *task.Executor
	composer   *runtime.Composer
	controller *breakpoint.Controller
	store      *breakpoint.Store
	log        logger.Logger
}

const defaultStoreDir = ".flowgate/runs"

func New(ctx context.Context, opts Options) (*Runner, error) {
	if opts.Workflow == nil {
		return nil, errors.New("runner requires a workflow")
	}
	if opts.Invoker == nil {
		return nil, errors.New("runner requires a task invoker")
	}
	if opts.Presenter == nil {
		opts.Presenter = breakpoint.AutoApprove()
	}
	if opts.Store == nil {
		opts.Store = breakpoint.NewStore(defaultStoreDir)
	}
	if opts.Logger == nil {
		opts.Logger = logger.New(nil)
	}
	registry := task.NewRegistry()
	if err := opts.Workflow.RegisterTasks(ctx, registry); err != nil {
		return nil, err
	}
	var execOpts []task.ExecutorOption
	if opts.BackoffBase > 0 {
		execOpts = append(execOpts, task.WithBackoffBase(opts.BackoffBase))
	}
	executor := task.NewExecutor(registry, opts.Invoker, execOpts...)
	return &Runner{
		cfg:        opts.Workflow,
		registry:   registry,
		executor:   executor,
		composer:   runtime.NewComposer(executor),
		controller: breakpoint.NewController(opts.Store, opts.Presenter),
		store:      opts.Store,
		log:        opts.Logger,
	}, nil
}

// Run executes the workflow from the first phase.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	rc := runtime.NewRunContext(r.cfg.ID, r.log)
	ctx = logger.ContextWithLogger(ctx, rc.Logger())
	rc.Logger().Info("run started", "phases", len(r.cfg.Phases))
	return r.runFrom(ctx, rc, 0, runtime.Outputs{})
}

// Resume continues a suspended run. When decision is nil the one already
// resolved onto the snapshot (via the HTTP surface) is used.
func (r *Runner) Resume(ctx context.Context, runID core.ID, decision *breakpoint.Decision) (*Result, error) {
	snap, err := r.store.Load(runID)
	if err != nil {
		return nil, err
	}
	if snap.Status != core.StatusSuspended {
		return nil, fmt.Errorf("run %s is %s, not suspended", runID, snap.Status)
	}
	if decision == nil {
		decision = snap.Decision
	}
	if decision == nil {
		return nil, fmt.Errorf("run %s has no decision to resume with", runID)
	}
	rc := runtime.RestoreRunContext(snap.RunID, snap.WorkflowID, snap.StartedAt, snap.Artifacts, r.log)
	ctx = logger.ContextWithLogger(ctx, rc.Logger())
	if _, err := r.controller.Resume(ctx, snap, decision); err != nil {
		return nil, err
	}
	outputs := runtime.Outputs(snap.Outputs)
	if outputs == nil {
		outputs = runtime.Outputs{}
	}
	if snap.PhaseIndex >= len(r.cfg.Phases) {
		return nil, fmt.Errorf("snapshot phase index %d out of range", snap.PhaseIndex)
	}
	phase := &r.cfg.Phases[snap.PhaseIndex]
	result, done := r.applyDecision(rc, phase, decision, outputs)
	if done {
		return result, nil
	}
	return r.runFrom(ctx, rc, snap.PhaseIndex+1, outputs)
}

func (r *Runner) runFrom(ctx context.Context, rc *runtime.RunContext, start int, outputs runtime.Outputs) (*Result, error) {
	for i := start; i < len(r.cfg.Phases); i++ {
		phase := &r.cfg.Phases[i]
		rc.Logger().Info("phase started", "phase", phase.ID, "type", phase.ExecutionType())
		var outcomes []*task.Outcome
		switch phase.ExecutionType() {
		case workflow.ExecutionParallel:
			outcomes = r.composer.RunParallel(ctx, rc, phase.Steps, outputs)
		default:
			outcomes = r.composer.RunSequential(ctx, rc, phase.Steps, outputs)
		}
		for _, outcome := range outcomes {
			if outcome.Fatal() {
				return r.fail(rc, core.StatusFailed,
					fmt.Sprintf("phase %q task %q: %s", phase.ID, outcome.TaskName, outcome.FailureReason()), nil), nil
			}
		}
		if phase.Breakpoint == nil {
			continue
		}
		snap := r.snapshot(rc, i, outputs)
		bp := &breakpoint.Breakpoint{
			Title:    phase.Breakpoint.Title,
			Question: phase.Breakpoint.Question,
			Context: breakpoint.Context{
				RunID:     rc.RunID,
				PhaseID:   phase.ID,
				Artifacts: rc.Artifacts(),
				Summary:   runtime.ResolveSummary(phase.Breakpoint.Summary, outputs),
			},
		}
		decision, err := r.controller.Suspend(ctx, snap, bp)
		if errors.Is(err, breakpoint.ErrAwaitingDecision) {
			return nil, ErrSuspended
		}
		if err != nil {
			return nil, err
		}
		result, done := r.applyDecision(rc, phase, decision, outputs)
		if done {
			return result, nil
		}
	}
	return r.finish(rc, outputs)
}

// applyDecision folds a breakpoint decision into the run. It returns a
// terminal result only for reject.
func (r *Runner) applyDecision(
	rc *runtime.RunContext,
	phase *workflow.PhaseConfig,
	decision *breakpoint.Decision,
	outputs runtime.Outputs,
) (*Result, bool) {
	switch decision.Action {
	case breakpoint.ActionReject:
		reason := decision.Reason
		if reason == "" {
			reason = fmt.Sprintf("breakpoint after phase %q rejected", phase.ID)
		}
		result := r.fail(rc, core.StatusRejected, "breakpoint rejected", []string{reason})
		return result, true
	case breakpoint.ActionModify:
		// The payload becomes a selectable output so later phases can
		// thread the reviewer's adjustments into their inputs.
		outputs.Record("decision_"+phase.ID, core.Output(decision.Payload))
	}
	return nil, false
}

func (r *Runner) finish(rc *runtime.RunContext, outputs runtime.Outputs) (*Result, error) {
	result := &Result{
		RunID:      rc.RunID,
		Artifacts:  rc.Artifacts(),
		DurationMs: rc.DurationMs(),
		Metadata:   r.metadata(rc),
	}
	gateCfg := r.cfg.Gate
	if gateCfg == nil {
		result.Success = true
		r.settle(rc, outputs, core.StatusSuccess)
		rc.Logger().Info("run completed", "success", true)
		return result, nil
	}
	assessment, ok := outputs[gateCfg.Task]
	if !ok {
		return r.fail(rc, core.StatusFailed,
			fmt.Sprintf("gate task %q produced no output", gateCfg.Task), nil), nil
	}
	score, err := gate.ExtractScore(assessment, gateCfg.Path())
	if err != nil {
		return r.fail(rc, core.StatusFailed, err.Error(), nil), nil
	}
	verdict := gate.Evaluate(score, gateCfg.Threshold).WithFindings(assessment)
	result.Score = &verdict.Score
	result.QualityMet = &verdict.Passed
	result.Success = verdict.Passed
	if len(verdict.Gaps) > 0 {
		result.Metadata["gaps"] = verdict.Gaps
	}
	if len(verdict.Recommendations) > 0 {
		result.Metadata["recommendations"] = verdict.Recommendations
	}
	status := core.StatusSuccess
	if !verdict.Passed {
		status = core.StatusFailed
		result.Metadata["failure_reason"] = fmt.Sprintf(
			"quality score %.1f below threshold %.1f", verdict.Score, verdict.Threshold)
	}
	r.settle(rc, outputs, status)
	rc.Logger().Info("run completed",
		"success", result.Success, "score", score, "threshold", gateCfg.Threshold)
	return result, nil
}

// fail produces the terminal result for a fatal condition, keeping every
// artifact accumulated so far.
func (r *Runner) fail(
	rc *runtime.RunContext,
	status core.StatusType,
	reason string,
	recommendations []string,
) *Result {
	metadata := r.metadata(rc)
	metadata["failure_reason"] = reason
	if len(recommendations) > 0 {
		metadata["recommendations"] = recommendations
	}
	r.settle(rc, nil, status)
	rc.Logger().Warn("run failed", "reason", reason)
	return &Result{
		RunID:      rc.RunID,
		Success:    false,
		Artifacts:  rc.Artifacts(),
		DurationMs: rc.DurationMs(),
		Metadata:   metadata,
	}
}

func (r *Runner) metadata(rc *runtime.RunContext) map[string]any {
	return map[string]any{
		"workflow_id": rc.WorkflowID,
		"run_id":      rc.RunID.String(),
	}
}

// settle persists the terminal snapshot so the run stays inspectable
// through the API after it ends.
func (r *Runner) settle(rc *runtime.RunContext, outputs runtime.Outputs, status core.StatusType) {
	snap := r.snapshot(rc, len(r.cfg.Phases), outputs)
	snap.Status = status
	if err := r.store.Save(snap); err != nil {
		rc.Logger().Warn("failed to persist terminal snapshot", "error", err)
	}
}

func (r *Runner) snapshot(rc *runtime.RunContext, phaseIndex int, outputs runtime.Outputs) *breakpoint.Snapshot {
	return &breakpoint.Snapshot{
		RunID:      rc.RunID,
		WorkflowID: rc.WorkflowID,
		StartedAt:  rc.StartedAt,
		PhaseIndex: phaseIndex,
		Artifacts:  rc.Artifacts(),
		Outputs:    map[string]core.Output(outputs),
	}
}
