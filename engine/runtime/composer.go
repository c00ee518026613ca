package runtime

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/engine/task"
	"github.com/flowgate/flowgate/engine/workflow"
)

// Composer executes the steps of one phase through the task executor. It
// guarantees ordering and fan-out semantics only; which fields travel
// between steps is declared per workflow and resolved by BuildInput.
type Composer struct {
	executor *task.Executor
}

func NewComposer(executor *task.Executor) *Composer {
	return &Composer{executor: executor}
}

// RunSequential executes steps one after another, threading each validated
// output into the pool later steps select from. It stops at the first
// fatal outcome and returns everything executed up to and including it.
func (c *Composer) RunSequential(
	ctx context.Context,
	rc *RunContext,
	steps []workflow.StepConfig,
	prior Outputs,
) []*task.Outcome {
	outcomes := make([]*task.Outcome, 0, len(steps))
	for _, step := range steps {
		outcome := c.runStep(ctx, rc, step, prior)
		outcomes = append(outcomes, outcome)
		if outcome.IsSuccess() {
			c.record(rc, prior, outcome)
			continue
		}
		if outcome.Fatal() {
			rc.Logger().Warn("sequential chain stopped",
				"task", step.Task, "reason", outcome.FailureReason())
			break
		}
	}
	return outcomes
}

// RunParallel fans the steps out concurrently, bounded by the number of
// declared steps. Every sibling runs to completion before any failure is
// propagated, and the merged outcome list is in declared order regardless
// of completion order.
func (c *Composer) RunParallel(
	ctx context.Context,
	rc *RunContext,
	steps []workflow.StepConfig,
	prior Outputs,
) []*task.Outcome {
	outcomes := make([]*task.Outcome, len(steps))
	// Inputs resolve against the same prior snapshot: siblings never
	// observe each other.
	snapshot := prior.Clone()
	g := new(errgroup.Group)
	g.SetLimit(len(steps))
	for idx, step := range steps {
		g.Go(func() error {
			outcomes[idx] = c.runStep(ctx, rc, step, snapshot)
			return nil
		})
	}
	_ = g.Wait()
	// Merge results back sequentially, in declared step order, so no
	// concurrent writer touches the shared output pool or the manifest.
	for _, outcome := range outcomes {
		if outcome.IsSuccess() {
			c.record(rc, prior, outcome)
		}
	}
	return outcomes
}

func (c *Composer) runStep(
	ctx context.Context,
	rc *RunContext,
	step workflow.StepConfig,
	prior Outputs,
) *task.Outcome {
	seq := rc.Tick()
	input, err := BuildInput(step, prior)
	if err != nil {
		return task.NewFailureOutcome(step.Task,
			core.NewError(err, "INPUT_MAPPING_FAILED", nil), false)
	}
	invocation, err := task.NewInvocation(step.Task, input)
	if err != nil {
		return task.NewFailureOutcome(step.Task,
			core.NewError(err, "INVOCATION_INVALID", nil), false)
	}
	rc.Logger().Debug("step dispatched", "task", step.Task, "seq", seq)
	return c.executor.Execute(ctx, invocation)
}

func (c *Composer) record(rc *RunContext, prior Outputs, outcome *task.Outcome) {
	prior.Record(outcome.TaskName, outcome.Output)
	rc.AppendArtifacts(outcome.Artifacts)
}
