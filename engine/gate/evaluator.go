package gate

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/flowgate/flowgate/engine/core"
)

// Result records one quality-gate decision. The score always comes from a
// designated assessment task's validated output; the gate only applies the
// configured threshold, keeping judgment and policy separate.
type Result struct {
	Score           float64  `json:"score"`
	Threshold       float64  `json:"threshold"`
	Passed          bool     `json:"passed"`
	Gaps            []string `json:"gaps,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Evaluate is a pure function: passed = score >= threshold, with boundary
// equality passing.
func Evaluate(score, threshold float64) *Result {
	return &Result{
		Score:     score,
		Threshold: threshold,
		Passed:    score >= threshold,
	}
}

// WithFindings copies the assessment's gaps and recommendations onto the
// result so a missed gate reports what to fix.
func (r *Result) WithFindings(output core.Output) *Result {
	r.Gaps = stringList(output, "gaps")
	r.Recommendations = stringList(output, "recommendations")
	return r
}

// ExtractScore reads the numeric score out of a validated task output by
// gjson path (commonly "overallScore" or "score").
func ExtractScore(output core.Output, path string) (float64, error) {
	raw, err := json.Marshal(output)
	if err != nil {
		return 0, fmt.Errorf("failed to encode output for score lookup: %w", err)
	}
	value := gjson.GetBytes(raw, path)
	if !value.Exists() {
		return 0, fmt.Errorf("score path %q not found in task output", path)
	}
	if value.Type != gjson.Number {
		return 0, fmt.Errorf("score path %q is %s, not a number", path, value.Type)
	}
	return value.Num, nil
}

func stringList(output core.Output, key string) []string {
	raw, ok := output[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
