package task

import (
	"fmt"

	"github.com/flowgate/flowgate/engine/core"
)

// Invocation is one request to execute a task with a concrete input. The
// identity key is derived deterministically from the task name and the
// canonical hash of the input, which is what guarantees at-most-one
// execution per identical invocation within a run.
type Invocation struct {
	TaskName    string     `json:"task_name"`
	Input       core.Input `json:"input,omitempty"`
	identityKey string
}

func NewInvocation(taskName string, input core.Input) (*Invocation, error) {
	digest, err := core.HashOf(map[string]any{
		"task":  taskName,
		"input": input.AsMap(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to derive identity key for %q: %w", taskName, err)
	}
	return &Invocation{
		TaskName:    taskName,
		Input:       input,
		identityKey: digest,
	}, nil
}

func (i *Invocation) IdentityKey() string {
	return i.identityKey
}
