package mcptools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sandraschi/vboxmcp/internal/vbox"
)

func TestStorageManagement_UnknownAction(t *testing.T) {
	tool := &StorageManagement{Orchestrator: newTestOrchestrator(newFakeRunner())}
	res := tool.Dispatch(context.Background(), "bogus", nil)
	if res.Success {
		t.Fatal("expected failure for unknown action")
	}
}

func TestStorageManagement_CreateControllerRequiresBus(t *testing.T) {
	tool := &StorageManagement{Orchestrator: newTestOrchestrator(newFakeRunner())}
	res := tool.Dispatch(context.Background(), "create_controller", json.RawMessage(`{"vm_name":"web-01","name":"sata0"}`))
	if res.Success || res.Error.Kind != string(vbox.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %+v", res)
	}
}

func TestStorageManagement_CreateDisk(t *testing.T) {
	fr := newFakeRunner()
	tool := &StorageManagement{Orchestrator: newTestOrchestrator(fr)}

	res := tool.Dispatch(context.Background(), "create_disk", json.RawMessage(`{"path":"/vms/disk.vdi","size_mb":20480}`))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestStorageManagement_AttachDiskRequiresMediumPath(t *testing.T) {
	tool := &StorageManagement{Orchestrator: newTestOrchestrator(newFakeRunner())}
	res := tool.Dispatch(context.Background(), "attach_disk", json.RawMessage(`{"vm_name":"web-01","controller_name":"sata0"}`))
	if res.Success || res.Error.Kind != string(vbox.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %+v", res)
	}
}
