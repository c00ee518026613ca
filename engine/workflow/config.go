package workflow

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/engine/schema"
	"github.com/flowgate/flowgate/engine/task"
)

// -----------------------------------------------------------------------------
// Execution Types
// -----------------------------------------------------------------------------

type ExecutionType string

const (
	ExecutionSequential ExecutionType = "sequential"
	ExecutionParallel   ExecutionType = "parallel"
)

// -----------------------------------------------------------------------------
// Declaration surface
// -----------------------------------------------------------------------------

// StepConfig references one task invocation inside a phase. `with` holds
// literal input fields; `from` maps input fields to gjson selectors over
// earlier validated outputs (e.g. "design_brief.brief").
type StepConfig struct {
	Task string            `json:"task"           yaml:"task"           validate:"required"`
	With core.Input        `json:"with,omitempty" yaml:"with,omitempty"`
	From map[string]string `json:"from,omitempty" yaml:"from,omitempty"`
}

// BreakpointConfig declares the human checkpoint that follows a phase.
// Summary selectors are resolved against the run's outputs and shown to
// the reviewer alongside the accumulated artifacts.
type BreakpointConfig struct {
	Title    string            `json:"title,omitempty"   yaml:"title,omitempty"`
	Question string            `json:"question"          yaml:"question"          validate:"required"`
	Summary  map[string]string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

type PhaseConfig struct {
	ID         string            `json:"id"                   yaml:"id"                   validate:"required"`
	Type       ExecutionType     `json:"type,omitempty"       yaml:"type,omitempty"       validate:"omitempty,oneof=sequential parallel"`
	Steps      []StepConfig      `json:"steps"                yaml:"steps"                validate:"min=1,dive"`
	Breakpoint *BreakpointConfig `json:"breakpoint,omitempty" yaml:"breakpoint,omitempty"`
}

func (p *PhaseConfig) ExecutionType() ExecutionType {
	if p.Type == "" {
		return ExecutionSequential
	}
	return p.Type
}

// GateConfig designates the assessment task whose score decides the run
// and the explicit threshold to hold it against.
type GateConfig struct {
	Task      string  `json:"task"                 yaml:"task"                 validate:"required"`
	ScorePath string  `json:"score_path,omitempty" yaml:"score_path,omitempty"`
	Threshold float64 `json:"threshold"            yaml:"threshold"            validate:"min=0,max=100"`
}

const defaultScorePath = "overallScore"

func (g *GateConfig) Path() string {
	if g.ScorePath == "" {
		return defaultScorePath
	}
	return g.ScorePath
}

type Config struct {
	ID          string            `json:"id"                    yaml:"id"                    validate:"required"`
	Version     string            `json:"version,omitempty"     yaml:"version,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks       []task.Definition `json:"tasks"                 yaml:"tasks"                 validate:"min=1"`
	Phases      []PhaseConfig     `json:"phases"                yaml:"phases"                validate:"min=1,dive"`
	Gate        *GateConfig       `json:"gate,omitempty"        yaml:"gate,omitempty"`
}

// -----------------------------------------------------------------------------
// Loading
// -----------------------------------------------------------------------------

func Load(ctx context.Context, path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return FromYAML(ctx, raw)
}

func FromYAML(ctx context.Context, raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func (c *Config) Validate(ctx context.Context) error {
	v := schema.NewCompositeValidator(
		schema.NewStructValidator(c),
		&referenceValidator{cfg: c},
	)
	return v.Validate(ctx)
}

// referenceValidator checks cross-references the struct tags cannot: every
// step and the gate must name a declared task, and phase ids must be
// unique.
type referenceValidator struct {
	cfg *Config
}

func (v *referenceValidator) Validate(ctx context.Context) error {
	declared := make(map[string]struct{}, len(v.cfg.Tasks))
	for i := range v.cfg.Tasks {
		def := &v.cfg.Tasks[i]
		if err := def.Validate(ctx); err != nil {
			return err
		}
		if _, dup := declared[def.Name]; dup {
			return fmt.Errorf("workflow %q declares task %q twice", v.cfg.ID, def.Name)
		}
		declared[def.Name] = struct{}{}
	}
	phaseIDs := make(map[string]struct{}, len(v.cfg.Phases))
	for i := range v.cfg.Phases {
		phase := &v.cfg.Phases[i]
		if _, dup := phaseIDs[phase.ID]; dup {
			return fmt.Errorf("workflow %q declares phase %q twice", v.cfg.ID, phase.ID)
		}
		phaseIDs[phase.ID] = struct{}{}
		for _, step := range phase.Steps {
			if _, ok := declared[step.Task]; !ok {
				return fmt.Errorf("phase %q references undeclared task %q", phase.ID, step.Task)
			}
		}
	}
	if v.cfg.Gate != nil {
		if _, ok := declared[v.cfg.Gate.Task]; !ok {
			return fmt.Errorf("gate references undeclared task %q", v.cfg.Gate.Task)
		}
	}
	return nil
}

// RegisterTasks populates the registry with every declared task definition.
func (c *Config) RegisterTasks(ctx context.Context, registry *task.Registry) error {
	for i := range c.Tasks {
		if err := registry.Register(ctx, &c.Tasks[i]); err != nil {
			return fmt.Errorf("workflow %q: %w", c.ID, err)
		}
	}
	return nil
}
