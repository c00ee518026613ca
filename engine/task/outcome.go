package task

import (
	"github.com/flowgate/flowgate/engine/artifact"
	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/engine/schema"
)

// OutcomeKind tags the closed set of results an execution can produce.
type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "success"
	OutcomeSchemaViolation  OutcomeKind = "schema_violation"
	OutcomeExecutionFailure OutcomeKind = "execution_failure"
)

// Outcome is the typed result of executing one invocation. Exactly one of
// Output, Violations or Err is meaningful, selected by Kind.
type Outcome struct {
	Kind       OutcomeKind         `json:"kind"`
	TaskName   string              `json:"task_name"`
	Output     core.Output         `json:"output,omitempty"`
	Artifacts  []artifact.Artifact `json:"artifacts,omitempty"`
	Violations []schema.Violation  `json:"violations,omitempty"`
	Err        *core.Error         `json:"error,omitempty"`
	Retryable  bool                `json:"retryable,omitempty"`
}

func NewSuccessOutcome(taskName string, output core.Output) *Outcome {
	return &Outcome{
		Kind:      OutcomeSuccess,
		TaskName:  taskName,
		Output:    output,
		Artifacts: artifact.FromOutput(output),
	}
}

func NewSchemaViolationOutcome(taskName string, violations []schema.Violation) *Outcome {
	return &Outcome{
		Kind:       OutcomeSchemaViolation,
		TaskName:   taskName,
		Violations: violations,
	}
}

func NewFailureOutcome(taskName string, err *core.Error, retryable bool) *Outcome {
	return &Outcome{
		Kind:      OutcomeExecutionFailure,
		TaskName:  taskName,
		Err:       err,
		Retryable: retryable,
	}
}

func (o *Outcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

// Fatal reports whether this outcome ends the run: a schema violation that
// survived its retry, or a non-retryable execution failure.
func (o *Outcome) Fatal() bool {
	switch o.Kind {
	case OutcomeSchemaViolation:
		return true
	case OutcomeExecutionFailure:
		return !o.Retryable
	}
	return false
}

// FailureReason renders a human-readable reason for non-success outcomes.
func (o *Outcome) FailureReason() string {
	switch o.Kind {
	case OutcomeSchemaViolation:
		res := schema.ValidationResult{Violations: o.Violations}
		return "schema violation: " + res.Summary()
	case OutcomeExecutionFailure:
		if o.Err != nil {
			return o.Err.Error()
		}
		return "execution failure"
	}
	return ""
}
