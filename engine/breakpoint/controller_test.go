package breakpoint

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/engine/artifact"
	"github.com/flowgate/flowgate/engine/core"
)

func memStore() *Store {
	return NewStore("runs", WithStoreFs(afero.NewMemMapFs()))
}

func sampleSnapshot(runID core.ID) *Snapshot {
	return &Snapshot{
		RunID:      runID,
		WorkflowID: "campaign-launch",
		Status:     core.StatusRunning,
		StartedAt:  time.Now(),
		PhaseIndex: 0,
		Artifacts:  []artifact.Artifact{{Path: "docs/brief.md", Format: "markdown"}},
		Outputs:    map[string]core.Output{"design_brief": {"brief": "text"}},
	}
}

func sampleBreakpoint(runID core.ID) *Breakpoint {
	return &Breakpoint{
		Title:    "Brief review",
		Question: "Approve the positioning brief?",
		Context: Context{
			RunID:   runID,
			PhaseID: "brief",
			Summary: map[string]any{"brief": "text"},
		},
	}
}

func TestControllerSuspend(t *testing.T) {
	t.Run("Should persist the snapshot before presenting", func(t *testing.T) {
		store := memStore()
		var seenPersisted bool
		presenter := PresenterFunc(func(_ context.Context, bp *Breakpoint) (*Decision, error) {
			snap, err := store.Load(bp.Context.RunID)
			seenPersisted = err == nil && snap.Status == core.StatusSuspended
			return &Decision{Action: ActionApprove}, nil
		})
		controller := NewController(store, presenter)
		runID := core.MustNewID()
		decision, err := controller.Suspend(t.Context(), sampleSnapshot(runID), sampleBreakpoint(runID))
		require.NoError(t, err)
		assert.True(t, seenPersisted)
		assert.Equal(t, ActionApprove, decision.Action)
		assert.Equal(t, core.StatusRunning, controller.State())
	})

	t.Run("Should stay suspended with a detached presenter", func(t *testing.T) {
		store := memStore()
		controller := NewController(store, Detached())
		runID := core.MustNewID()
		_, err := controller.Suspend(t.Context(), sampleSnapshot(runID), sampleBreakpoint(runID))
		assert.ErrorIs(t, err, ErrAwaitingDecision)
		assert.Equal(t, core.StatusSuspended, controller.State())

		snap, err := store.Load(runID)
		require.NoError(t, err)
		assert.Equal(t, core.StatusSuspended, snap.Status)
		assert.Nil(t, snap.Decision)
	})

	t.Run("Should mark a rejected run as terminal", func(t *testing.T) {
		store := memStore()
		presenter := PresenterFunc(func(_ context.Context, _ *Breakpoint) (*Decision, error) {
			return &Decision{Action: ActionReject, Reason: "weak positioning"}, nil
		})
		controller := NewController(store, presenter)
		runID := core.MustNewID()
		decision, err := controller.Suspend(t.Context(), sampleSnapshot(runID), sampleBreakpoint(runID))
		require.NoError(t, err)
		assert.Equal(t, ActionReject, decision.Action)

		snap, err := store.Load(runID)
		require.NoError(t, err)
		assert.Equal(t, core.StatusRejected, snap.Status)
	})

	t.Run("Should reject an invalid decision", func(t *testing.T) {
		store := memStore()
		presenter := PresenterFunc(func(_ context.Context, _ *Breakpoint) (*Decision, error) {
			return &Decision{Action: "shrug"}, nil
		})
		controller := NewController(store, presenter)
		runID := core.MustNewID()
		_, err := controller.Suspend(t.Context(), sampleSnapshot(runID), sampleBreakpoint(runID))
		assert.Error(t, err)
	})
}

func TestStore(t *testing.T) {
	t.Run("Should round-trip a snapshot", func(t *testing.T) {
		store := memStore()
		runID := core.MustNewID()
		snap := sampleSnapshot(runID)
		snap.Status = core.StatusSuspended
		require.NoError(t, store.Save(snap))

		loaded, err := store.Load(runID)
		require.NoError(t, err)
		assert.Equal(t, snap.WorkflowID, loaded.WorkflowID)
		assert.Equal(t, snap.Artifacts, loaded.Artifacts)
		assert.Equal(t, core.Output{"brief": "text"}, loaded.Outputs["design_brief"])
	})

	t.Run("Should return ErrRunNotFound for unknown runs", func(t *testing.T) {
		_, err := memStore().Load(core.MustNewID())
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("Should resolve a suspended run with a decision", func(t *testing.T) {
		store := memStore()
		runID := core.MustNewID()
		snap := sampleSnapshot(runID)
		snap.Status = core.StatusSuspended
		require.NoError(t, store.Save(snap))

		resolved, err := store.Resolve(runID, &Decision{Action: ActionApprove})
		require.NoError(t, err)
		require.NotNil(t, resolved.Decision)
		assert.Equal(t, ActionApprove, resolved.Decision.Action)
	})

	t.Run("Should refuse to resolve a run that is not suspended", func(t *testing.T) {
		store := memStore()
		runID := core.MustNewID()
		snap := sampleSnapshot(runID)
		snap.Status = core.StatusSuccess
		require.NoError(t, store.Save(snap))
		_, err := store.Resolve(runID, &Decision{Action: ActionApprove})
		assert.Error(t, err)
	})

	t.Run("Should list stored snapshots", func(t *testing.T) {
		store := memStore()
		for range 3 {
			snap := sampleSnapshot(core.MustNewID())
			require.NoError(t, store.Save(snap))
		}
		snaps, err := store.List()
		require.NoError(t, err)
		assert.Len(t, snaps, 3)
	})
}

func TestDecisionValidate(t *testing.T) {
	t.Run("Should accept approve and reject", func(t *testing.T) {
		assert.NoError(t, (&Decision{Action: ActionApprove}).Validate())
		assert.NoError(t, (&Decision{Action: ActionReject, Reason: "no"}).Validate())
	})

	t.Run("Should require a payload for modify", func(t *testing.T) {
		assert.Error(t, (&Decision{Action: ActionModify}).Validate())
		assert.NoError(t, (&Decision{
			Action:  ActionModify,
			Payload: core.Input{"tone": "softer"},
		}).Validate())
	})

	t.Run("Should reject unknown actions", func(t *testing.T) {
		assert.Error(t, (&Decision{Action: "maybe"}).Validate())
	})
}

func TestHub(t *testing.T) {
	t.Run("Should deliver a resolved decision to the waiting presenter", func(t *testing.T) {
		hub := NewHub()
		runID := core.MustNewID()
		done := make(chan *Decision, 1)
		go func() {
			decision, err := hub.Presenter().Present(t.Context(), sampleBreakpoint(runID))
			if err == nil {
				done <- decision
			}
		}()
		require.Eventually(t, func() bool {
			return hub.Resolve(runID, &Decision{Action: ActionApprove}) == nil
		}, time.Second, 5*time.Millisecond)
		decision := <-done
		assert.Equal(t, ActionApprove, decision.Action)
	})

	t.Run("Should refuse a decision for a run nobody waits on", func(t *testing.T) {
		hub := NewHub()
		err := hub.Resolve(core.MustNewID(), &Decision{Action: ActionApprove})
		assert.Error(t, err)
	})
}
