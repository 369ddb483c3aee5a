// Package mcptools implements the Portmanteau Action Router: one file
// per consolidated tool (vm_management, network_management,
// snapshot_management, storage_management, system_management, and the
// Hyper-V structural analogue), each dispatching an `action`
// discriminator to the VBox Orchestrator and shaping the result into
// the uniform wire envelope.
package mcptools

import (
	"encoding/json"
	"strings"

	"github.com/sandraschi/vboxmcp/internal/vbox"
)

// Result is the uniform envelope every tool call returns, mirroring
// the wire contract: {success, data?, error?}.
type Result struct {
	Success  bool                   `json:"success"`
	Data     interface{}            `json:"data,omitempty"`
	Error    *ErrorEnvelope         `json:"error,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
}

// ErrorEnvelope is the wire shape of a structured error.
type ErrorEnvelope struct {
	Kind    string      `json:"kind"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

// Ok builds a successful Result.
func Ok(data interface{}) *Result {
	return &Result{Success: true, Data: data}
}

// OkWithWarnings builds a successful Result carrying non-fatal
// advisories, e.g. CPU oversubscription accepted per §8.
func OkWithWarnings(data interface{}, warnings []string) *Result {
	return &Result{Success: true, Data: data, Warnings: warnings}
}

// Fail converts a *vbox.Error (or any error) into a failed Result.
func Fail(err error) *Result {
	if err == nil {
		return Ok(nil)
	}
	ve := vbox.AsError(err)
	env := &ErrorEnvelope{Kind: string(ve.Kind), Message: ve.Message}
	if ve.Detail != nil {
		env.Detail = ve.Detail
	}
	return &Result{Success: false, Error: env}
}

// InvalidArgument builds a failed Result for a pre-dispatch validation
// failure, without involving the Orchestrator or Error Classifier.
func InvalidArgument(format string, args ...interface{}) *Result {
	return Fail(vbox.NewError(vbox.KindInvalidArgument, format, args...))
}

// unknownAction builds the InvalidArgument error whose message
// enumerates the tool's declared action set, per §8's action enum
// closure invariant.
func unknownAction(action string, allowed []string) *Result {
	return InvalidArgument("action must be one of [%s], got %q", strings.Join(allowed, ", "), action)
}

// decodeParams unmarshals raw into dst, returning an InvalidArgument
// Result (never a Go error) on malformed JSON so handlers can return it
// directly.
func decodeParams(raw json.RawMessage, dst interface{}) *Result {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return InvalidArgument("malformed parameters: %v", err)
	}
	return nil
}

// requireString validates a required string parameter is non-empty.
func requireString(name, value string) *Result {
	if strings.TrimSpace(value) == "" {
		return InvalidArgument("%s is required", name)
	}
	return nil
}
