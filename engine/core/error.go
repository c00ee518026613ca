package core

import "fmt"

// Error is the typed failure carried on outcomes and results. It is a
// value object, not a wrapper for control flow: the runtime never lets
// one escape past the process runner boundary.
type Error struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func NewError(err error, code string, details map[string]any) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Message: msg,
		Code:    code,
		Details: details,
	}
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *Error) AsMap() map[string]any {
	m := map[string]any{"message": e.Message}
	if e.Code != "" {
		m["code"] = e.Code
	}
	if len(e.Details) > 0 {
		m["details"] = e.Details
	}
	return m
}
