// Package toolsurface implements ToolSurface (spec.md §4.15, §6): the
// uniform request/response boundary every named tool is called through,
// translating each service's typed errs.Error into a single JSON
// envelope shape instead of a tool-specific one. Adapted from the
// teacher's MCP request/response skeleton in internal/mcp/transport_http.go
// (method+params in, result/error out), reshaped to serve the envelope
// this spec defines rather than a JSON-RPC one.
package toolsurface

import "errors"

// Status is an Envelope's outcome discriminator.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Envelope is the uniform response shape every tool handler returns
// (spec.md §4.15): success carries Data, failure carries Message plus
// the typed ErrorCode/RecoveryStrategy pulled off the underlying
// errs.Error.
type Envelope struct {
	Status           Status `json:"status"`
	Message          string `json:"message,omitempty"`
	Data             any    `json:"data,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	RecoveryStrategy string `json:"recovery_strategy,omitempty"`
	Details          any    `json:"details,omitempty"`
}

// ok wraps a successful result.
func ok(data any) Envelope {
	return Envelope{Status: StatusOK, Data: data}
}

// errEnvelope translates err into a failure Envelope, pulling error_code
// and recovery_strategy off the wrapped errs.Error when present so every
// tool handler gets that translation for free rather than reimplementing
// the errors.As dance itself.
func errEnvelope(err error) Envelope {
	env := Envelope{Status: StatusError, Message: err.Error()}
	var typed interface {
		Code() string
		RecoveryStrategy() string
	}
	if errors.As(err, &typed) {
		env.ErrorCode = typed.Code()
		env.RecoveryStrategy = typed.RecoveryStrategy()
	}
	return env
}
