package mcptools

import (
	"context"
	"encoding/json"

	"github.com/sandraschi/vboxmcp/internal/hyperv"
)

var hypervManagementActions = []string{"list", "start", "stop", "info"}

// HypervManagement is the hyperv_management portmanteau tool, the
// structural analogue of vm_management against Hyper-V. It is only
// registered when config.DetectPlatform reports HyperVCapable.
type HypervManagement struct {
	Orchestrator *hyperv.Orchestrator
}

func (t *HypervManagement) Actions() []string { return hypervManagementActions }

type hypervRefParams struct {
	Name string `json:"name"`
}

type hypervStopParams struct {
	Name  string `json:"name"`
	Force bool   `json:"force"`
}

func (t *HypervManagement) Dispatch(ctx context.Context, action string, raw json.RawMessage) *Result {
	switch action {
	case "list":
		vms, verr := t.Orchestrator.List(ctx)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(vms)

	case "info":
		var p hypervRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("name", p.Name); r != nil {
			return r
		}
		vm, verr := t.Orchestrator.Info(ctx, p.Name)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(vm)

	case "start":
		var p hypervRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("name", p.Name); r != nil {
			return r
		}
		if verr := t.Orchestrator.Start(ctx, p.Name); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "stop":
		var p hypervStopParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("name", p.Name); r != nil {
			return r
		}
		if verr := t.Orchestrator.Stop(ctx, p.Name, p.Force); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	default:
		return unknownAction(action, hypervManagementActions)
	}
}
