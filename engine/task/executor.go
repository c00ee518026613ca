package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/engine/schema"
	"github.com/flowgate/flowgate/pkg/logger"
)

const (
	ErrCodeTaskNotFound = "TASK_NOT_FOUND"
	ErrCodeInvocation   = "INVOCATION_FAILED"
	ErrCodeCanceled     = "INVOCATION_CANCELED"
)

// errOutputViolation marks an output that failed shape validation inside
// the retry loop so the final error can be classified.
var errOutputViolation = errors.New("output schema violation")

const defaultBackoffBase = 500 * time.Millisecond

// Executor resolves invocations through the task execution contract. It
// validates input before the external call, validates output after it with
// exactly one automatic retry, and memoizes outcomes per identity key so an
// identical invocation executes at most once within a run.
type Executor struct {
	registry *Registry
	invoker  Invoker
	backoff  time.Duration

	mu       sync.Mutex
	memo     map[string]*Outcome
	inflight map[string]chan struct{}
}

type ExecutorOption func(*Executor)

// WithBackoffBase sets the base delay of the retry backoff.
func WithBackoffBase(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.backoff = d
		}
	}
}

func NewExecutor(registry *Registry, invoker Invoker, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		invoker:  invoker,
		backoff:  defaultBackoffBase,
		memo:     make(map[string]*Outcome),
		inflight: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, inv *Invocation) *Outcome {
	log := logger.FromContext(ctx)
	def, err := e.registry.Lookup(inv.TaskName)
	if err != nil {
		return NewFailureOutcome(inv.TaskName, core.NewError(err, ErrCodeTaskNotFound, nil), false)
	}
	if res := def.InputShape.ValidateValue(inv.Input.AsMap()); !res.Valid() {
		log.Warn("task input rejected", "task", inv.TaskName, "violations", res.Summary())
		return NewSchemaViolationOutcome(inv.TaskName, res.Violations)
	}
	key := inv.IdentityKey()
	for {
		e.mu.Lock()
		if memoized, ok := e.memo[key]; ok {
			e.mu.Unlock()
			log.Debug("invocation memoized", "task", inv.TaskName)
			return memoized
		}
		running, ok := e.inflight[key]
		if !ok {
			done := make(chan struct{})
			e.inflight[key] = done
			e.mu.Unlock()
			return e.executeAndSettle(ctx, def, inv, key, done)
		}
		e.mu.Unlock()
		// An identical invocation is already in flight; wait for its
		// outcome instead of dispatching a second external call.
		select {
		case <-running:
		case <-ctx.Done():
			return NewFailureOutcome(inv.TaskName, core.NewError(ctx.Err(), ErrCodeCanceled, nil), false)
		}
	}
}

func (e *Executor) executeAndSettle(
	ctx context.Context,
	def *Definition,
	inv *Invocation,
	key string,
	done chan struct{},
) *Outcome {
	outcome := e.run(ctx, def, inv)
	e.mu.Lock()
	// A canceled run leaves no memo entry: its result is discarded so a
	// retried run re-executes the invocation cleanly.
	if ctx.Err() == nil {
		e.memo[key] = outcome
	}
	delete(e.inflight, key)
	close(done)
	e.mu.Unlock()
	return outcome
}

func (e *Executor) run(ctx context.Context, def *Definition, inv *Invocation) *Outcome {
	var output core.Output
	var violations []schema.Violation
	backoff := retry.WithMaxRetries(1, retry.NewExponential(e.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		raw, err := e.invoker.Invoke(ctx, inv.TaskName, inv.Input)
		if err != nil {
			var invokeErr *InvokeError
			if errors.As(err, &invokeErr) && invokeErr.Retryable {
				return retry.RetryableError(err)
			}
			return err
		}
		if res := def.OutputShape.ValidateValue(raw.AsMap()); !res.Valid() {
			violations = res.Violations
			return retry.RetryableError(errOutputViolation)
		}
		output = raw
		return nil
	})
	switch {
	case err == nil:
		return NewSuccessOutcome(inv.TaskName, output)
	case errors.Is(err, errOutputViolation):
		// The single automatic retry also produced a non-conforming
		// output; surface the structural diff.
		return NewSchemaViolationOutcome(inv.TaskName, violations)
	default:
		details := map[string]any{"task": inv.TaskName}
		var invokeErr *InvokeError
		if errors.As(err, &invokeErr) && invokeErr.Retryable {
			details["retry_exhausted"] = true
		}
		// The retry budget is spent, so the failure is final either way.
		return NewFailureOutcome(inv.TaskName, core.NewError(err, ErrCodeInvocation, details), false)
	}
}
