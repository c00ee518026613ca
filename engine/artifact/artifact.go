package artifact

import "github.com/flowgate/flowgate/engine/core"

// Artifact is a file-like output descriptor produced by a task. Once
// appended to a run it is immutable.
type Artifact struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Label    string `json:"label,omitempty"`
	Language string `json:"language,omitempty"`
}

// FromOutput extracts artifact descriptors from a validated task output.
// Tasks report artifacts under the conventional "artifacts" key; outputs
// without one simply contribute nothing.
func FromOutput(out core.Output) []Artifact {
	raw, ok := out["artifacts"].([]any)
	if !ok {
		return nil
	}
	list := make([]Artifact, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		a := Artifact{
			Path:     stringProp(obj, "path"),
			Format:   stringProp(obj, "format"),
			Label:    stringProp(obj, "label"),
			Language: stringProp(obj, "language"),
		}
		if a.Path == "" {
			continue
		}
		list = append(list, a)
	}
	return list
}

// Aggregate concatenates per-task artifact lists in step-declaration order
// and drops duplicate paths, keeping the first occurrence. Callers pass
// parallel-group lists in declared order so the manifest is reproducible
// regardless of scheduler timing.
func Aggregate(perTask ...[]Artifact) []Artifact {
	var merged []Artifact
	seen := make(map[string]struct{})
	for _, list := range perTask {
		for _, a := range list {
			if _, dup := seen[a.Path]; dup {
				continue
			}
			seen[a.Path] = struct{}{}
			merged = append(merged, a)
		}
	}
	return merged
}

func stringProp(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
