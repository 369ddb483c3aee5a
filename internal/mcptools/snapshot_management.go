package mcptools

import (
	"context"
	"encoding/json"

	"github.com/sandraschi/vboxmcp/internal/jobs"
	"github.com/sandraschi/vboxmcp/internal/vbox"
)

var snapshotManagementActions = []string{"list", "create", "restore", "delete"}

// SnapshotManagement is the snapshot_management portmanteau tool.
type SnapshotManagement struct {
	Orchestrator *vbox.Orchestrator
	Jobs         *jobs.Tracker
}

func (t *SnapshotManagement) Actions() []string { return snapshotManagementActions }

type snapshotListParams struct {
	VMName string `json:"vm_name"`
}

type snapshotCreateParams struct {
	VMName      string `json:"vm_name"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Live        bool   `json:"live,omitempty"`
}

type snapshotRefParams struct {
	VMName   string `json:"vm_name"`
	Snapshot string `json:"snapshot"`
}

func (t *SnapshotManagement) Dispatch(ctx context.Context, action string, raw json.RawMessage) *Result {
	switch action {
	case "list":
		var p snapshotListParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		tree, verr := t.Orchestrator.ListSnapshots(ctx, p.VMName)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(tree)

	case "create":
		var p snapshotCreateParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if r := requireString("name", p.Name); r != nil {
			return r
		}
		node, verr := t.Orchestrator.CreateSnapshot(ctx, p.VMName, p.Name, p.Description)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(node)

	case "restore":
		var p snapshotRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if r := requireString("snapshot", p.Snapshot); r != nil {
			return r
		}
		if verr := t.Orchestrator.RestoreSnapshot(ctx, p.VMName, p.Snapshot); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "delete":
		var p snapshotRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if r := requireString("snapshot", p.Snapshot); r != nil {
			return r
		}
		// Snapshot merges can take long enough to warrant a job; surfaced
		// as one regardless of actual duration to give callers a single
		// polling path for this action.
		jobID := t.Jobs.Submit(jobs.KindDeleteSnapshot, func(jctx context.Context, progress func(int)) (interface{}, error) {
			if verr := t.Orchestrator.DeleteSnapshot(jctx, p.VMName, p.Snapshot, progress); verr != nil {
				return nil, verr
			}
			return nil, nil
		})
		return Ok(map[string]string{"job_id": jobID, "state": "running"})

	default:
		return unknownAction(action, snapshotManagementActions)
	}
}
