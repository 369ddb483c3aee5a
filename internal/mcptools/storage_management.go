package mcptools

import (
	"context"
	"encoding/json"

	"github.com/sandraschi/vboxmcp/internal/vbox"
)

var storageManagementActions = []string{
	"list_controllers", "create_controller", "remove_controller", "list_disks", "create_disk", "attach_disk",
}

// StorageManagement is the storage_management portmanteau tool.
type StorageManagement struct {
	Orchestrator *vbox.Orchestrator
}

func (t *StorageManagement) Actions() []string { return storageManagementActions }

type storageVMParams struct {
	VMName string `json:"vm_name"`
}

type createControllerParams struct {
	VMName string `json:"vm_name"`
	Name   string `json:"name"`
	Bus    string `json:"bus"`
}

type removeControllerParams struct {
	VMName string `json:"vm_name"`
	Name   string `json:"name"`
}

type createDiskParams struct {
	Path   string `json:"path"`
	SizeMB int    `json:"size_mb"`
	Format string `json:"format,omitempty"`
}

type attachDiskParams struct {
	VMName         string `json:"vm_name"`
	ControllerName string `json:"controller_name"`
	Port           int    `json:"port"`
	Device         int    `json:"device"`
	MediumPath     string `json:"medium_path"`
}

func (t *StorageManagement) Dispatch(ctx context.Context, action string, raw json.RawMessage) *Result {
	switch action {
	case "list_controllers":
		var p storageVMParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		controllers, verr := t.Orchestrator.ListControllers(ctx, p.VMName)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(controllers)

	case "create_controller":
		var p createControllerParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if r := requireString("name", p.Name); r != nil {
			return r
		}
		if r := requireString("bus", p.Bus); r != nil {
			return r
		}
		if verr := t.Orchestrator.CreateController(ctx, p.VMName, p.Name, p.Bus); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "remove_controller":
		var p removeControllerParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if r := requireString("name", p.Name); r != nil {
			return r
		}
		if verr := t.Orchestrator.RemoveController(ctx, p.VMName, p.Name); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "list_disks":
		var p storageVMParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		disks, verr := t.Orchestrator.ListDisks(ctx, p.VMName)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(disks)

	case "create_disk":
		var p createDiskParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("path", p.Path); r != nil {
			return r
		}
		if verr := t.Orchestrator.CreateMedium(ctx, p.Path, p.SizeMB, p.Format); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "attach_disk":
		var p attachDiskParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if r := requireString("controller_name", p.ControllerName); r != nil {
			return r
		}
		if r := requireString("medium_path", p.MediumPath); r != nil {
			return r
		}
		if verr := t.Orchestrator.AttachDisk(ctx, p.VMName, p.ControllerName, p.Port, p.Device, p.MediumPath); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	default:
		return unknownAction(action, storageManagementActions)
	}
}
