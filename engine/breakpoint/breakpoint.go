package breakpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowgate/flowgate/engine/artifact"
	"github.com/flowgate/flowgate/engine/core"
)

// -----------------------------------------------------------------------------
// Decisions
// -----------------------------------------------------------------------------

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionModify  Action = "modify"
)

// Decision is the human answer to a breakpoint. Modify carries a payload
// that later phases can select from.
type Decision struct {
	Action  Action     `json:"action"`
	Reason  string     `json:"reason,omitempty"`
	Payload core.Input `json:"payload,omitempty"`
}

func (d *Decision) Validate() error {
	switch d.Action {
	case ActionApprove, ActionReject:
		return nil
	case ActionModify:
		if len(d.Payload) == 0 {
			return errors.New("modify decision requires a payload")
		}
		return nil
	}
	return fmt.Errorf("unknown decision action %q", d.Action)
}

// -----------------------------------------------------------------------------
// Breakpoint
// -----------------------------------------------------------------------------

// Breakpoint is the question put to a human between phases, together with
// the context they need to answer it: the run, the artifacts produced so
// far and a workflow-defined summary.
type Breakpoint struct {
	Title    string  `json:"title,omitempty"`
	Question string  `json:"question"`
	Context  Context `json:"context"`
}

type Context struct {
	RunID     core.ID             `json:"run_id"`
	PhaseID   string              `json:"phase_id"`
	Artifacts []artifact.Artifact `json:"artifacts,omitempty"`
	Summary   map[string]any      `json:"summary,omitempty"`
}

// -----------------------------------------------------------------------------
// Presenter contract
// -----------------------------------------------------------------------------

// ErrAwaitingDecision tells the runner that the breakpoint was recorded
// but no decision exists yet: the run stays suspended and must be resumed
// out of band. Detached presenters return it by design; there is no
// timeout-based auto-resume anywhere.
var ErrAwaitingDecision = errors.New("breakpoint awaiting decision")

// Presenter is the breakpoint contract: present the question and block
// until a decision arrives, or return ErrAwaitingDecision to leave the run
// suspended for an asynchronous resume.
type Presenter interface {
	Present(ctx context.Context, bp *Breakpoint) (*Decision, error)
}

type PresenterFunc func(ctx context.Context, bp *Breakpoint) (*Decision, error)

func (f PresenterFunc) Present(ctx context.Context, bp *Breakpoint) (*Decision, error) {
	return f(ctx, bp)
}

// AutoApprove answers every breakpoint with approve. Non-interactive runs
// and tests use it.
func AutoApprove() Presenter {
	return PresenterFunc(func(_ context.Context, _ *Breakpoint) (*Decision, error) {
		return &Decision{Action: ActionApprove}, nil
	})
}

// Detached records the breakpoint and leaves the run suspended; a decision
// must arrive later through the store (CLI resume or the HTTP surface).
func Detached() Presenter {
	return PresenterFunc(func(_ context.Context, _ *Breakpoint) (*Decision, error) {
		return nil, ErrAwaitingDecision
	})
}
