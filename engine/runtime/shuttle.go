package runtime

import (
	"encoding/json"
	"fmt"

	"dario.cat/mergo"
	"github.com/tidwall/gjson"

	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/engine/workflow"
)

// Outputs indexes validated task outputs by task name. Only outputs that
// passed shape validation are ever recorded here, so selectors always read
// trusted data.
type Outputs map[string]core.Output

func (o Outputs) Record(taskName string, output core.Output) {
	o[taskName] = output
}

func (o Outputs) Clone() Outputs {
	c := make(Outputs, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// BuildInput assembles a step's input: literal `with` fields merged with
// `from` selectors resolved against earlier outputs. Selector paths are
// gjson expressions rooted at the task name ("design_brief.brief").
func BuildInput(step workflow.StepConfig, prior Outputs) (core.Input, error) {
	input := step.With.Clone()
	if len(step.From) == 0 {
		return input, nil
	}
	raw, err := json.Marshal(prior)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prior outputs: %w", err)
	}
	selected := make(core.Input, len(step.From))
	for field, selector := range step.From {
		value := gjson.GetBytes(raw, selector)
		if !value.Exists() {
			return nil, fmt.Errorf(
				"step %q selector %q matched nothing in prior outputs", step.Task, selector)
		}
		selected[field] = value.Value()
	}
	if err := mergo.Merge(&input, selected, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge step input: %w", err)
	}
	return input, nil
}

// ResolveSummary renders a breakpoint's summary selectors against the
// run's outputs. Missing selectors resolve to nil rather than failing the
// suspend: the reviewer still sees the rest of the context.
func ResolveSummary(selectors map[string]string, prior Outputs) map[string]any {
	if len(selectors) == 0 {
		return nil
	}
	raw, err := json.Marshal(prior)
	if err != nil {
		return nil
	}
	summary := make(map[string]any, len(selectors))
	for label, selector := range selectors {
		summary[label] = gjson.GetBytes(raw, selector).Value()
	}
	return summary
}
