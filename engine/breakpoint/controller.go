package breakpoint

import (
	"context"
	"sync"

	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/pkg/logger"
)

// Controller drives the suspend/resume state machine of one run:
// Running -> Suspended -> Running -> ... -> terminal. The snapshot is made
// durable before the question is ever presented, so a process restart
// while suspended loses nothing. There is no timeout path: a run with no
// decision stays suspended indefinitely.
type Controller struct {
	store     *Store
	presenter Presenter

	mu    sync.Mutex
	state core.StatusType
}

func NewController(store *Store, presenter Presenter) *Controller {
	return &Controller{
		store:     store,
		presenter: presenter,
		state:     core.StatusRunning,
	}
}

func (c *Controller) State() core.StatusType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Suspend persists the run snapshot, presents the breakpoint and blocks
// until a decision arrives. When the presenter is detached it returns
// ErrAwaitingDecision and the run stays suspended for an out-of-band
// Resume.
func (c *Controller) Suspend(ctx context.Context, snap *Snapshot, bp *Breakpoint) (*Decision, error) {
	log := logger.FromContext(ctx)
	c.setState(core.StatusSuspended)
	snap.Status = core.StatusSuspended
	snap.Breakpoint = bp
	snap.Decision = nil
	if err := c.store.Save(snap); err != nil {
		return nil, err
	}
	log.Info("run suspended at breakpoint",
		"run_id", snap.RunID, "phase", bp.Context.PhaseID, "question", bp.Question)
	decision, err := c.presenter.Present(ctx, bp)
	if err != nil {
		return nil, err
	}
	return c.Resume(ctx, snap, decision)
}

// Resume applies a decision to a suspended snapshot and transitions the
// controller back to running (or to rejected, which is terminal for the
// run).
func (c *Controller) Resume(ctx context.Context, snap *Snapshot, decision *Decision) (*Decision, error) {
	if err := decision.Validate(); err != nil {
		return nil, err
	}
	snap.Decision = decision
	if decision.Action == ActionReject {
		snap.Status = core.StatusRejected
	} else {
		snap.Status = core.StatusRunning
	}
	if err := c.store.Save(snap); err != nil {
		return nil, err
	}
	c.setState(core.StatusRunning)
	logger.FromContext(ctx).Info("run resumed",
		"run_id", snap.RunID, "decision", decision.Action)
	return decision, nil
}

func (c *Controller) setState(state core.StatusType) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}
