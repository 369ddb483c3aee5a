package mcptools

import (
	"context"
	"encoding/json"

	"github.com/sandraschi/vboxmcp/internal/vbox"
)

var systemManagementActions = []string{"host_info", "vbox_version", "ostypes", "metrics", "screenshot"}

// SystemManagement is the system_management portmanteau tool.
type SystemManagement struct {
	Orchestrator *vbox.Orchestrator
}

func (t *SystemManagement) Actions() []string { return systemManagementActions }

type metricsParams struct {
	VMName string `json:"vm_name"`
}

type screenshotParams struct {
	VMName   string `json:"vm_name"`
	DestPath string `json:"dest_path"`
}

func (t *SystemManagement) Dispatch(ctx context.Context, action string, raw json.RawMessage) *Result {
	switch action {
	case "host_info":
		info, verr := t.Orchestrator.HostInfo(ctx)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(info)

	case "vbox_version":
		version, verr := t.Orchestrator.VBoxVersion(ctx)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(map[string]string{"version": version})

	case "ostypes":
		types, verr := t.Orchestrator.ListOSTypes(ctx)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(types)

	case "metrics":
		var p metricsParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		m, verr := t.Orchestrator.GetMetrics(ctx, p.VMName)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(m)

	case "screenshot":
		var p screenshotParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if r := requireString("dest_path", p.DestPath); r != nil {
			return r
		}
		if verr := t.Orchestrator.Screenshot(ctx, p.VMName, p.DestPath); verr != nil {
			return Fail(verr)
		}
		return Ok(map[string]string{"path": p.DestPath})

	default:
		return unknownAction(action, systemManagementActions)
	}
}
