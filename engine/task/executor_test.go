package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/engine/core"
)

type countingInvoker struct {
	calls   atomic.Int64
	handler InvokerFunc
}

func (c *countingInvoker) Invoke(ctx context.Context, taskName string, input core.Input) (core.Output, error) {
	c.calls.Add(1)
	return c.handler(ctx, taskName, input)
}

func newTestExecutor(t *testing.T, handler InvokerFunc) (*Executor, *countingInvoker) {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(t.Context(), briefDefinition()))
	invoker := &countingInvoker{handler: handler}
	return NewExecutor(reg, invoker, WithBackoffBase(time.Millisecond)), invoker
}

func briefInvocation(t *testing.T, product string) *Invocation {
	t.Helper()
	inv, err := NewInvocation("design_brief", core.Input{"product": product})
	require.NoError(t, err)
	return inv
}

func TestExecutorExecute(t *testing.T) {
	t.Run("Should return a validated success outcome", func(t *testing.T) {
		exec, _ := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			return core.Output{"brief": "positioning brief"}, nil
		})
		out := exec.Execute(t.Context(), briefInvocation(t, "widget"))
		require.True(t, out.IsSuccess())
		assert.Equal(t, "positioning brief", out.Output.Prop("brief"))
	})

	t.Run("Should fail fast for an unregistered task", func(t *testing.T) {
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			return core.Output{}, nil
		})
		inv, err := NewInvocation("nope", core.Input{})
		require.NoError(t, err)
		out := exec.Execute(t.Context(), inv)
		assert.Equal(t, OutcomeExecutionFailure, out.Kind)
		assert.False(t, out.Retryable)
		assert.Equal(t, ErrCodeTaskNotFound, out.Err.Code)
		assert.Zero(t, invoker.calls.Load())
	})

	t.Run("Should reject invalid input without an external call", func(t *testing.T) {
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			return core.Output{}, nil
		})
		inv, err := NewInvocation("design_brief", core.Input{"product": 42})
		require.NoError(t, err)
		out := exec.Execute(t.Context(), inv)
		assert.Equal(t, OutcomeSchemaViolation, out.Kind)
		assert.Zero(t, invoker.calls.Load())
	})

	t.Run("Should memoize outcomes per identity key", func(t *testing.T) {
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			return core.Output{"brief": "b"}, nil
		})
		first := exec.Execute(t.Context(), briefInvocation(t, "widget"))
		second := exec.Execute(t.Context(), briefInvocation(t, "widget"))
		assert.Same(t, first, second)
		assert.Equal(t, int64(1), invoker.calls.Load())
	})

	t.Run("Should execute distinct inputs independently", func(t *testing.T) {
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, input core.Input) (core.Output, error) {
			return core.Output{"brief": input["product"].(string)}, nil
		})
		exec.Execute(t.Context(), briefInvocation(t, "widget"))
		exec.Execute(t.Context(), briefInvocation(t, "gadget"))
		assert.Equal(t, int64(2), invoker.calls.Load())
	})

	t.Run("Should retry a malformed output once and accept the repaired one", func(t *testing.T) {
		var attempt atomic.Int64
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			if attempt.Add(1) == 1 {
				return core.Output{"wrong": true}, nil
			}
			return core.Output{"brief": "fixed"}, nil
		})
		out := exec.Execute(t.Context(), briefInvocation(t, "widget"))
		require.True(t, out.IsSuccess())
		assert.Equal(t, int64(2), invoker.calls.Load())
	})

	t.Run("Should surface a schema violation after the single retry fails", func(t *testing.T) {
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			return core.Output{"wrong": true}, nil
		})
		out := exec.Execute(t.Context(), briefInvocation(t, "widget"))
		assert.Equal(t, OutcomeSchemaViolation, out.Kind)
		assert.True(t, out.Fatal())
		assert.Equal(t, int64(2), invoker.calls.Load())
	})

	t.Run("Should retry a retryable transport failure once", func(t *testing.T) {
		var attempt atomic.Int64
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			if attempt.Add(1) == 1 {
				return nil, NewInvokeError("agent timed out", true)
			}
			return core.Output{"brief": "late but fine"}, nil
		})
		out := exec.Execute(t.Context(), briefInvocation(t, "widget"))
		require.True(t, out.IsSuccess())
		assert.Equal(t, int64(2), invoker.calls.Load())
	})

	t.Run("Should not retry a non-retryable failure", func(t *testing.T) {
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			return nil, NewInvokeError("agent crashed", false)
		})
		out := exec.Execute(t.Context(), briefInvocation(t, "widget"))
		assert.Equal(t, OutcomeExecutionFailure, out.Kind)
		assert.True(t, out.Fatal())
		assert.Equal(t, int64(1), invoker.calls.Load())
	})

	t.Run("Should mark an exhausted retryable failure as final", func(t *testing.T) {
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			return nil, NewInvokeError("still timing out", true)
		})
		out := exec.Execute(t.Context(), briefInvocation(t, "widget"))
		assert.Equal(t, OutcomeExecutionFailure, out.Kind)
		assert.False(t, out.Retryable)
		assert.True(t, out.Fatal())
		assert.Equal(t, int64(2), invoker.calls.Load())
		assert.Equal(t, true, out.Err.Details["retry_exhausted"])
	})

	t.Run("Should not memoize a canceled invocation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			cancel()
			return core.Output{"brief": "done anyway"}, nil
		})
		exec.Execute(ctx, briefInvocation(t, "widget"))
		// A fresh context re-executes: the canceled attempt left no entry.
		exec.Execute(t.Context(), briefInvocation(t, "widget"))
		assert.Equal(t, int64(2), invoker.calls.Load())
	})

	t.Run("Should dispatch concurrent identical invocations at most once", func(t *testing.T) {
		release := make(chan struct{})
		exec, invoker := newTestExecutor(t, func(_ context.Context, _ string, _ core.Input) (core.Output, error) {
			<-release
			return core.Output{"brief": "b"}, nil
		})
		results := make(chan *Outcome, 2)
		for range 2 {
			go func() {
				results <- exec.Execute(context.Background(), briefInvocation(t, "widget"))
			}()
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		a, b := <-results, <-results
		assert.True(t, a.IsSuccess())
		assert.True(t, b.IsSuccess())
		assert.Equal(t, int64(1), invoker.calls.Load())
	})
}
