package runtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowgate/flowgate/engine/artifact"
	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/pkg/logger"
)

// RunContext is the process-scoped state of one workflow execution: run
// identifier, logical clock, logger sink and the append-only artifact
// list. It is owned by exactly one process runner and handed into
// collaborators by reference, never through a process-wide singleton.
type RunContext struct {
	RunID      core.ID
	WorkflowID string
	StartedAt  time.Time

	log   logger.Logger
	clock atomic.Int64

	mu        sync.Mutex
	artifacts []artifact.Artifact
}

func NewRunContext(workflowID string, log logger.Logger) *RunContext {
	runID := core.MustNewID()
	return &RunContext{
		RunID:      runID,
		WorkflowID: workflowID,
		StartedAt:  time.Now(),
		log:        log.With("run_id", runID.String(), "workflow_id", workflowID),
	}
}

// RestoreRunContext rebuilds a run context from a durable snapshot so a
// suspended run resumes with exactly the artifacts it had accumulated.
func RestoreRunContext(
	runID core.ID,
	workflowID string,
	startedAt time.Time,
	artifacts []artifact.Artifact,
	log logger.Logger,
) *RunContext {
	rc := &RunContext{
		RunID:      runID,
		WorkflowID: workflowID,
		StartedAt:  startedAt,
		log:        log.With("run_id", runID.String(), "workflow_id", workflowID),
		artifacts:  append([]artifact.Artifact(nil), artifacts...),
	}
	return rc
}

func (rc *RunContext) Logger() logger.Logger {
	return rc.log
}

// Tick advances the run's logical clock and returns the new value. Log
// lines and snapshots use it to order events without trusting wall time.
func (rc *RunContext) Tick() int64 {
	return rc.clock.Add(1)
}

// AppendArtifacts merges a task's artifact list into the run manifest,
// deduplicating by path against what is already recorded.
func (rc *RunContext) AppendArtifacts(list []artifact.Artifact) {
	if len(list) == 0 {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.artifacts = artifact.Aggregate(rc.artifacts, list)
}

// Artifacts returns a copy of the manifest accumulated so far.
func (rc *RunContext) Artifacts() []artifact.Artifact {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]artifact.Artifact(nil), rc.artifacts...)
}

func (rc *RunContext) DurationMs() int64 {
	return time.Since(rc.StartedAt).Milliseconds()
}
