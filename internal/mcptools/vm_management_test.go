package mcptools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/sandraschi/vboxmcp/internal/jobs"
	"github.com/sandraschi/vboxmcp/internal/vbox"
)

func newTestVMManagement(r *fakeRunner) *VMManagement {
	return &VMManagement{
		Orchestrator: newTestOrchestrator(r),
		Jobs:         jobs.NewTracker(time.Hour, 100, hclog.NewNullLogger()),
	}
}

func TestVMManagement_UnknownAction(t *testing.T) {
	tool := newTestVMManagement(newFakeRunner())
	res := tool.Dispatch(context.Background(), "bogus", nil)
	if res.Success {
		t.Fatal("expected failure for unknown action")
	}
}

func TestVMManagement_StartRequiresVMName(t *testing.T) {
	tool := newTestVMManagement(newFakeRunner())
	res := tool.Dispatch(context.Background(), "start", json.RawMessage(`{}`))
	if res.Success || res.Error.Kind != string(vbox.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %+v", res)
	}
}

func TestVMManagement_List(t *testing.T) {
	fr := newFakeRunner()
	fr.responses["list"] = &vbox.RunResult{ExitCode: 0, Stdout: `"web-01" {u-1}
`}
	tool := newTestVMManagement(fr)

	res := tool.Dispatch(context.Background(), "list", json.RawMessage(`{"details":false}`))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestVMManagement_CloneReturnsJobID(t *testing.T) {
	fr := newFakeRunner()
	tool := newTestVMManagement(fr)

	res := tool.Dispatch(context.Background(), "clone", json.RawMessage(`{"vm_name":"web-01","new_name":"web-02"}`))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	data, ok := res.Data.(map[string]string)
	if !ok || data["job_id"] == "" {
		t.Fatalf("expected a job_id in the response, got %+v", res.Data)
	}
}

func TestVMManagement_LinkedCloneRequiresSnapshot(t *testing.T) {
	tool := newTestVMManagement(newFakeRunner())
	res := tool.Dispatch(context.Background(), "clone", json.RawMessage(`{"vm_name":"web-01","new_name":"web-02","mode":"linked"}`))
	if res.Success || res.Error.Kind != string(vbox.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %+v", res)
	}
}

func TestVMManagement_JobStatusUnknownJob(t *testing.T) {
	tool := newTestVMManagement(newFakeRunner())
	res := tool.Dispatch(context.Background(), "job_status", json.RawMessage(`{"job_id":"no-such-job"}`))
	if res.Success || res.Error.Kind != string(vbox.KindNotFound) {
		t.Fatalf("expected NotFound, got %+v", res)
	}
}
