package breakpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowgate/flowgate/engine/core"
)

// Hub routes decisions from an external surface (the HTTP API) to runs
// blocked inside a Present call. One waiter per run.
type Hub struct {
	mu      sync.Mutex
	waiting map[core.ID]chan *Decision
}

func NewHub() *Hub {
	return &Hub{waiting: make(map[core.ID]chan *Decision)}
}

// Presenter returns a presenter that blocks until Resolve is called for
// the breakpoint's run.
func (h *Hub) Presenter() Presenter {
	return PresenterFunc(func(ctx context.Context, bp *Breakpoint) (*Decision, error) {
		ch := h.register(bp.Context.RunID)
		defer h.unregister(bp.Context.RunID)
		select {
		case decision := <-ch:
			return decision, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

// Resolve delivers a decision to the run waiting on it.
func (h *Hub) Resolve(runID core.ID, decision *Decision) error {
	if err := decision.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	ch, ok := h.waiting[runID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("no suspended run %s is waiting for a decision", runID)
	}
	select {
	case ch <- decision:
		return nil
	default:
		return fmt.Errorf("run %s already received a decision", runID)
	}
}

// Waiting lists the runs currently blocked on a decision.
func (h *Hub) Waiting() []core.ID {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]core.ID, 0, len(h.waiting))
	for id := range h.waiting {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) register(runID core.ID) chan *Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan *Decision, 1)
	h.waiting[runID] = ch
	return ch
}

func (h *Hub) unregister(runID core.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.waiting, runID)
}
