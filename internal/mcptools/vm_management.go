package mcptools

import (
	"context"
	"encoding/json"
	"runtime"

	"github.com/sandraschi/vboxmcp/internal/jobs"
	"github.com/sandraschi/vboxmcp/internal/vbox"
)

// vmManagementActions is the authoritative action set for vm_management,
// reproduced from the router's action table (§4.G).
var vmManagementActions = []string{
	"list", "create", "start", "stop", "delete", "clone", "reset", "pause", "resume", "info",
	"job_status", "job_cancel",
}

// VMManagement is the vm_management portmanteau tool.
type VMManagement struct {
	Orchestrator *vbox.Orchestrator
	Jobs         *jobs.Tracker
}

// Actions returns the declared action set, used by the Tool Registry to
// synthesize standalone tools in testing mode.
func (t *VMManagement) Actions() []string { return vmManagementActions }

type vmListParams struct {
	Details bool `json:"details"`
}

type vmCreateParams struct {
	Name        string `json:"name"`
	OSType      string `json:"os_type"`
	MemoryMB    int    `json:"memory_mb"`
	CPUCount    int    `json:"cpu_count"`
	DiskSizeMB  int    `json:"disk_size_mb"`
	Firmware    string `json:"firmware"`
	NetworkType string `json:"network_type"`
}

type vmStartParams struct {
	VMName string `json:"vm_name"`
	Mode   string `json:"mode"`
}

type vmStopParams struct {
	VMName string `json:"vm_name"`
	Mode   string `json:"mode"`
}

type vmDeleteParams struct {
	VMName      string `json:"vm_name"`
	DeleteMedia bool   `json:"delete_media"`
}

type vmCloneParams struct {
	VMName   string `json:"vm_name"`
	NewName  string `json:"new_name"`
	Mode     string `json:"mode"`
	Snapshot string `json:"snapshot,omitempty"`
}

type vmRefParams struct {
	VMName string `json:"vm_name"`
}

type jobRefParams struct {
	JobID string `json:"job_id"`
}

// Dispatch validates action against vmManagementActions, decodes the
// action-specific parameters, and invokes the corresponding
// Orchestrator method.
func (t *VMManagement) Dispatch(ctx context.Context, action string, raw json.RawMessage) *Result {
	switch action {
	case "list":
		var p vmListParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		summaries, records, verr := t.Orchestrator.ListVMs(ctx, p.Details)
		if verr != nil {
			return Fail(verr)
		}
		if p.Details {
			return Ok(records)
		}
		return Ok(summaries)

	case "create":
		var p vmCreateParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("name", p.Name); r != nil {
			return r
		}
		if r := requireString("os_type", p.OSType); r != nil {
			return r
		}
		firmware := vbox.FirmwareBIOS
		if p.Firmware == "EFI" || p.Firmware == "efi" {
			firmware = vbox.FirmwareEFI
		}
		rec, verr := t.Orchestrator.CreateVM(ctx, p.Name, p.OSType, p.MemoryMB, p.CPUCount, p.DiskSizeMB, firmware, p.NetworkType)
		if verr != nil {
			return Fail(verr)
		}
		return withCPUOversubscriptionWarning(rec, p.CPUCount)

	case "start":
		var p vmStartParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		state, verr := t.Orchestrator.StartVM(ctx, p.VMName, vbox.StartMode(defaultString(p.Mode, "headless")))
		if verr != nil {
			return Fail(verr)
		}
		return Ok(map[string]string{"state": string(state)})

	case "stop":
		var p vmStopParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if verr := t.Orchestrator.StopVM(ctx, p.VMName, vbox.StopMode(defaultString(p.Mode, "poweroff"))); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "delete":
		var p vmDeleteParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if verr := t.Orchestrator.DeleteVM(ctx, p.VMName, p.DeleteMedia); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "clone":
		var p vmCloneParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if r := requireString("new_name", p.NewName); r != nil {
			return r
		}
		mode := vbox.CloneMode(defaultString(p.Mode, "full"))
		if mode == vbox.CloneLinked && p.Snapshot == "" {
			return InvalidArgument("linked clones require a snapshot reference")
		}
		jobID := t.Jobs.Submit(jobs.KindCloneVM, func(jctx context.Context, progress func(int)) (interface{}, error) {
			_, verr := t.Orchestrator.CloneVM(jctx, p.VMName, p.NewName, mode, p.Snapshot, progress)
			if verr != nil {
				return nil, verr
			}
			return map[string]string{"new_name": p.NewName}, nil
		})
		return Ok(map[string]string{"job_id": jobID, "state": "running"})

	case "reset":
		var p vmRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if verr := t.Orchestrator.ResetVM(ctx, p.VMName); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "pause":
		var p vmRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if verr := t.Orchestrator.PauseVM(ctx, p.VMName); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "resume":
		var p vmRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if verr := t.Orchestrator.ResumeVM(ctx, p.VMName); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "info":
		var p vmRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		rec, verr := t.Orchestrator.GetVMInfo(ctx, p.VMName)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(rec)

	case "job_status":
		var p jobRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("job_id", p.JobID); r != nil {
			return r
		}
		snap, err := t.Jobs.Status(p.JobID)
		if err != nil {
			return Fail(vbox.NewError(vbox.KindNotFound, "%v", err))
		}
		return Ok(snap)

	case "job_cancel":
		var p jobRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("job_id", p.JobID); r != nil {
			return r
		}
		if err := t.Jobs.Cancel(p.JobID); err != nil {
			return Fail(vbox.NewError(vbox.KindNotFound, "%v", err))
		}
		return Ok(nil)

	default:
		return unknownAction(action, vmManagementActions)
	}
}

// withCPUOversubscriptionWarning surfaces a non-fatal advisory when
// cpu_count exceeds the host's logical CPU count, per §8's boundary
// behavior — VBox permits oversubscription, it is never an error.
func withCPUOversubscriptionWarning(rec *vbox.VMRecord, requestedCPUs int) *Result {
	if requestedCPUs > runtime.NumCPU() {
		rec.Warnings = append(rec.Warnings, "cpu_count exceeds host logical CPU count; VM is oversubscribed")
		return OkWithWarnings(rec, rec.Warnings)
	}
	return Ok(rec)
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
