package vbox

import "testing"

func TestClassify_ExitZeroIsEmptyKind(t *testing.T) {
	if got := Classify(0, "", ""); got != "" {
		t.Fatalf("kind: got %q", got)
	}
}

func TestClassify_NotFound(t *testing.T) {
	stderr := `VBoxManage: error: Could not find a registered machine named 'web-01'`
	if got := Classify(1, stderr, ""); got != KindNotFound {
		t.Fatalf("kind: got %q", got)
	}
}

func TestClassify_InvalidStateNotRunning(t *testing.T) {
	stderr := `VBoxManage: error: Machine 'web-01' is not currently running`
	if got := Classify(1, stderr, ""); got != KindInvalidState {
		t.Fatalf("kind: got %q", got)
	}
}

func TestClassify_AlreadyExists(t *testing.T) {
	stderr := `VBoxManage: error: Machine named 'web-01' already exists`
	if got := Classify(1, stderr, ""); got != KindAlreadyExists {
		t.Fatalf("kind: got %q", got)
	}
}

func TestClassify_MediumNotFound(t *testing.T) {
	stderr := `VBoxManage: error: Could not find file '/vms/missing.vdi' (VERR_FILE_NOT_FOUND)`
	if got := Classify(1, stderr, ""); got != KindMediumNotFound {
		t.Fatalf("kind: got %q", got)
	}
}

func TestClassify_PermissionDenied(t *testing.T) {
	stderr := `VBoxManage: error: VERR_ACCESS_DENIED`
	if got := Classify(1, stderr, ""); got != KindPermissionDenied {
		t.Fatalf("kind: got %q", got)
	}
}

func TestClassify_FallsThroughToVBoxError(t *testing.T) {
	stderr := `VBoxManage: error: something we've never seen before`
	if got := Classify(1, stderr, ""); got != KindVBoxError {
		t.Fatalf("kind: got %q", got)
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// Contains both a NotFound and an AlreadyExists signature; NotFound
	// is listed first in the table and must win.
	stderr := `Could not find a registered machine named 'x'; note: target already exists elsewhere`
	if got := Classify(1, stderr, ""); got != KindNotFound {
		t.Fatalf("kind: got %q", got)
	}
}

func TestClassifyResult_TimeoutTakesPriority(t *testing.T) {
	res := &RunResult{TimedOut: true, ExitCode: -1}
	err := classifyResult("startvm", res)
	if err == nil || err.Kind != KindTimeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

func TestClassifyResult_CancelledTakesPriority(t *testing.T) {
	res := &RunResult{Cancelled: true, ExitCode: -1}
	err := classifyResult("startvm", res)
	if err == nil || err.Kind != KindCancelled {
		t.Fatalf("expected Cancelled, got %v", err)
	}
}

func TestClassifyResult_SuccessIsNil(t *testing.T) {
	res := &RunResult{ExitCode: 0}
	if err := classifyResult("startvm", res); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAsError_WrapsPlainError(t *testing.T) {
	ve := AsError(errBoom)
	if ve.Kind != KindInternalError {
		t.Fatalf("kind: got %q", ve.Kind)
	}
}

var errBoom = &simpleError{"boom"}

type simpleError struct{ msg string }

func (e *simpleError) Error() string { return e.msg }
