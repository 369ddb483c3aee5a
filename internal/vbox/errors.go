package vbox

import (
	"fmt"
	"strings"
)

// ErrorKind is the stable error taxonomy every Orchestrator method and
// portmanteau handler surfaces to the harness.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "NotFound"
	KindAlreadyExists    ErrorKind = "AlreadyExists"
	KindInvalidState     ErrorKind = "InvalidState"
	KindInvalidArgument  ErrorKind = "InvalidArgument"
	KindMediumNotFound   ErrorKind = "MediumNotFound"
	KindPermissionDenied ErrorKind = "PermissionDenied"
	KindTimeout          ErrorKind = "Timeout"
	KindCancelled        ErrorKind = "Cancelled"
	KindVBoxError        ErrorKind = "VBoxError"
	KindParseError       ErrorKind = "ParseError"
	KindInternalError    ErrorKind = "InternalError"
)

// Detail carries machine-readable context about a VBoxError, attached
// to the wire error envelope's "detail" field.
type Detail struct {
	ExitCode   int    `json:"exit_code,omitempty"`
	StderrTail string `json:"stderr_tail,omitempty"`
}

// Error is the structured error every Orchestrator method returns
// instead of an opaque Go error, so handlers can build the wire
// envelope without re-classifying anything.
type Error struct {
	Kind    ErrorKind
	Message string
	Detail  *Detail
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewError builds an *Error with no detail.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a *vbox.Error from any error, falling back to
// wrapping it as an InternalError so callers never have to type-assert
// defensively.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*Error); ok {
		return ve
	}
	return &Error{Kind: KindInternalError, Message: err.Error()}
}

// classifierRule is one (substring, ErrorKind) matcher, tested in
// order; first match wins. This table is the authoritative mapping
// from VBoxManage's stderr signatures to the error taxonomy.
var classifierRules = []struct {
	substr string
	kind   ErrorKind
}{
	{"Could not find a registered machine named", KindNotFound},
	{"Could not find a registered snapshot", KindNotFound},
	{"is not currently running", KindInvalidState},
	{"is already running", KindInvalidState},
	{"already exists", KindAlreadyExists},
	{"VERR_ALREADY_EXISTS", KindAlreadyExists},
	{"VERR_FILE_NOT_FOUND", KindMediumNotFound},
	{"Could not find file", KindMediumNotFound},
	{"VERR_ACCESS_DENIED", KindPermissionDenied},
	{"VBOX_E_INVALID_OBJECT_STATE", KindInvalidState},
	{"Syntax error", KindInvalidArgument},
	{"invalid option", KindInvalidArgument},
}

// Classify maps the triple (exitCode, stderr, stdout) from a VBoxManage
// invocation to an ErrorKind. Classification is a pure function with no
// side effects — it never itself invokes VBoxManage — which is what
// lets the state-machine guard tests assert "InvalidState without
// invoking VBoxManage" using a recording Process Runner double.
func Classify(exitCode int, stderr, stdout string) ErrorKind {
	if exitCode == 0 {
		return ""
	}
	for _, rule := range classifierRules {
		if strings.Contains(stderr, rule.substr) {
			return rule.kind
		}
	}
	return KindVBoxError
}

// tailLines returns the last n lines of s, used to keep stderr_tail
// bounded in error detail.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// classifyResult turns a RunResult into a structured *Error, or nil on
// success. op names the VBoxManage verb for the message.
func classifyResult(op string, res *RunResult) *Error {
	if res.TimedOut {
		return NewError(KindTimeout, "%s timed out after %s", op, res.Duration)
	}
	if res.Cancelled {
		return NewError(KindCancelled, "%s was cancelled", op)
	}
	if res.ExitCode == 0 {
		return nil
	}

	kind := Classify(res.ExitCode, res.Stderr, res.Stdout)
	detail := &Detail{ExitCode: res.ExitCode, StderrTail: tailLines(res.Stderr, 20)}
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("%s exited with code %d", op, res.ExitCode)
	}
	return &Error{Kind: kind, Message: msg, Detail: detail}
}
