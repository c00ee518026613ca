package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/engine/task"
)

const campaignYAML = `
id: campaign-launch
version: 0.3.0
description: Positioning brief, parallel drafts, assessment gate.
tasks:
  - name: design_brief
    input:
      type: object
      required: [product]
      properties:
        product: {type: string}
    output:
      type: object
      required: [brief]
      properties:
        brief: {type: string}
  - name: draft_press_release
    output:
      type: object
      required: [artifacts]
  - name: draft_landing_page
    output:
      type: object
      required: [artifacts]
  - name: assess_quality
    output:
      type: object
      required: [overallScore]
      properties:
        overallScore: {type: number, minimum: 0, maximum: 100}
phases:
  - id: brief
    steps:
      - task: design_brief
        with:
          product: widget
    breakpoint:
      title: Brief review
      question: Approve the positioning brief?
      summary:
        brief: design_brief.brief
  - id: drafts
    type: parallel
    steps:
      - task: draft_press_release
        from:
          brief: design_brief.brief
      - task: draft_landing_page
        from:
          brief: design_brief.brief
  - id: assess
    steps:
      - task: assess_quality
gate:
  task: assess_quality
  threshold: 80
`

func TestFromYAML(t *testing.T) {
	t.Run("Should parse a complete workflow declaration", func(t *testing.T) {
		cfg, err := FromYAML(t.Context(), []byte(campaignYAML))
		require.NoError(t, err)
		assert.Equal(t, "campaign-launch", cfg.ID)
		require.Len(t, cfg.Phases, 3)
		assert.Equal(t, ExecutionSequential, cfg.Phases[0].ExecutionType())
		assert.Equal(t, ExecutionParallel, cfg.Phases[1].ExecutionType())
		require.NotNil(t, cfg.Phases[0].Breakpoint)
		assert.Equal(t, "Approve the positioning brief?", cfg.Phases[0].Breakpoint.Question)
		require.NotNil(t, cfg.Gate)
		assert.Equal(t, float64(80), cfg.Gate.Threshold)
		assert.Equal(t, "overallScore", cfg.Gate.Path())
	})

	t.Run("Should decode step input mappings", func(t *testing.T) {
		cfg, err := FromYAML(t.Context(), []byte(campaignYAML))
		require.NoError(t, err)
		step := cfg.Phases[1].Steps[0]
		assert.Equal(t, "draft_press_release", step.Task)
		assert.Equal(t, "design_brief.brief", step.From["brief"])
	})

	t.Run("Should reject a step that names an undeclared task", func(t *testing.T) {
		bad := `
id: broken
tasks:
  - name: only_task
phases:
  - id: p1
    steps:
      - task: ghost_task
`
		_, err := FromYAML(t.Context(), []byte(bad))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ghost_task")
	})

	t.Run("Should reject duplicate phase ids", func(t *testing.T) {
		bad := `
id: broken
tasks:
  - name: a
phases:
  - id: p1
    steps: [{task: a}]
  - id: p1
    steps: [{task: a}]
`
		_, err := FromYAML(t.Context(), []byte(bad))
		assert.Error(t, err)
	})

	t.Run("Should reject a gate on an undeclared task", func(t *testing.T) {
		bad := `
id: broken
tasks:
  - name: a
phases:
  - id: p1
    steps: [{task: a}]
gate:
  task: ghost
  threshold: 70
`
		_, err := FromYAML(t.Context(), []byte(bad))
		assert.Error(t, err)
	})

	t.Run("Should reject a workflow without phases", func(t *testing.T) {
		_, err := FromYAML(t.Context(), []byte("id: empty\ntasks: [{name: a}]\n"))
		assert.Error(t, err)
	})
}

func TestRegisterTasks(t *testing.T) {
	t.Run("Should populate the registry from the declaration", func(t *testing.T) {
		cfg, err := FromYAML(t.Context(), []byte(campaignYAML))
		require.NoError(t, err)
		registry := task.NewRegistry()
		require.NoError(t, cfg.RegisterTasks(t.Context(), registry))
		def, err := registry.Lookup("assess_quality")
		require.NoError(t, err)
		assert.NotNil(t, def.OutputShape)
	})

	t.Run("Should register idempotently across repeated loads", func(t *testing.T) {
		cfg, err := FromYAML(t.Context(), []byte(campaignYAML))
		require.NoError(t, err)
		registry := task.NewRegistry()
		require.NoError(t, cfg.RegisterTasks(t.Context(), registry))
		require.NoError(t, cfg.RegisterTasks(t.Context(), registry))
	})
}
