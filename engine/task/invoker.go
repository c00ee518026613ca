package task

import (
	"context"
	"fmt"

	"github.com/flowgate/flowgate/engine/core"
)

// Invoker is the task execution contract: given a task name and validated
// input, the external capability returns the raw output or an error. The
// runtime never assumes anything about the transport behind it.
type Invoker interface {
	Invoke(ctx context.Context, taskName string, input core.Input) (core.Output, error)
}

// InvokerFunc adapts a function to the Invoker interface, mostly for tests
// and in-process embedding.
type InvokerFunc func(ctx context.Context, taskName string, input core.Input) (core.Output, error)

func (f InvokerFunc) Invoke(ctx context.Context, taskName string, input core.Input) (core.Output, error) {
	return f(ctx, taskName, input)
}

// InvokeError is a transport failure with an explicit retryable flag.
// Errors of any other type are treated as non-retryable.
type InvokeError struct {
	Reason    string
	Retryable bool
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("task invocation failed: %s", e.Reason)
}

func NewInvokeError(reason string, retryable bool) *InvokeError {
	return &InvokeError{Reason: reason, Retryable: retryable}
}
