package core

import "maps"

// -----------------------------------------------------------------------------
// Input / Output
// -----------------------------------------------------------------------------

// Input is the JSON object handed to a task before execution.
type Input map[string]any

// Output is the JSON object a task produced, validated against its
// declared output shape before anyone downstream may read it.
type Output map[string]any

func (i Input) AsMap() map[string]any {
	return map[string]any(i)
}

func (i Input) Clone() Input {
	if i == nil {
		return Input{}
	}
	c := make(Input, len(i))
	maps.Copy(c, i)
	return c
}

func (o Output) AsMap() map[string]any {
	return map[string]any(o)
}

func (o Output) Prop(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// -----------------------------------------------------------------------------
// Run Status
// -----------------------------------------------------------------------------

type StatusType string

const (
	StatusPending   StatusType = "PENDING"
	StatusRunning   StatusType = "RUNNING"
	StatusSuspended StatusType = "SUSPENDED"
	StatusSuccess   StatusType = "SUCCESS"
	StatusFailed    StatusType = "FAILED"
	StatusRejected  StatusType = "REJECTED"
)

func (s StatusType) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible.
func (s StatusType) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusRejected:
		return true
	}
	return false
}
