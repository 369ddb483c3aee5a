package mcptools

import (
	"context"
	"encoding/json"

	"github.com/sandraschi/vboxmcp/internal/vbox"
)

var networkManagementActions = []string{
	"list_networks", "create_network", "remove_network", "list_adapters", "configure_adapter",
}

// NetworkManagement is the network_management portmanteau tool.
type NetworkManagement struct {
	Orchestrator *vbox.Orchestrator
}

func (t *NetworkManagement) Actions() []string { return networkManagementActions }

type networkRefParams struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type listAdaptersParams struct {
	VMName string `json:"vm_name"`
}

type portForwardParams struct {
	Name      string `json:"name"`
	Protocol  string `json:"protocol"`
	HostIP    string `json:"host_ip,omitempty"`
	HostPort  int    `json:"host_port"`
	GuestIP   string `json:"guest_ip,omitempty"`
	GuestPort int    `json:"guest_port"`
}

type configureAdapterParams struct {
	VMName            string             `json:"vm_name"`
	Slot              int                `json:"slot"`
	Type              string             `json:"type,omitempty"`
	Backing           string             `json:"backing,omitempty"`
	MAC               string             `json:"mac,omitempty"`
	CableConnected    *bool              `json:"cable_connected,omitempty"`
	AddPortForward    *portForwardParams `json:"add_port_forward,omitempty"`
	RemovePortForward string             `json:"remove_port_forward,omitempty"`
}

func (t *NetworkManagement) Dispatch(ctx context.Context, action string, raw json.RawMessage) *Result {
	switch action {
	case "list_networks":
		nets, verr := t.Orchestrator.ListNetworks(ctx)
		if verr != nil {
			return Fail(verr)
		}
		return Ok(nets)

	case "create_network":
		var p networkRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("name", p.Name); r != nil {
			return r
		}
		if verr := t.Orchestrator.CreateHostOnlyNetwork(ctx, networkKind(p.Kind), p.Name); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "remove_network":
		var p networkRefParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("name", p.Name); r != nil {
			return r
		}
		if verr := t.Orchestrator.RemoveHostOnlyNetwork(ctx, networkKind(p.Kind), p.Name); verr != nil {
			return Fail(verr)
		}
		return Ok(nil)

	case "list_adapters":
		var p listAdaptersParams
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
		return Ok(rec.NetworkAdapters)

	case "configure_adapter":
		var p configureAdapterParams
		if r := decodeParams(raw, &p); r != nil {
			return r
		}
		if r := requireString("vm_name", p.VMName); r != nil {
			return r
		}
		if p.Slot < 0 || p.Slot > 3 {
			return InvalidArgument("slot must be 0..3, got %d", p.Slot)
		}
		if p.Type != "" || p.Backing != "" || p.MAC != "" || p.CableConnected != nil {
			if verr := t.Orchestrator.ConfigureNIC(ctx, p.VMName, p.Slot, p.Type, p.Backing, p.MAC, p.CableConnected); verr != nil {
				return Fail(verr)
			}
		}
		if p.AddPortForward != nil {
			rule := vbox.NATRule{
				Name:      p.AddPortForward.Name,
				Protocol:  p.AddPortForward.Protocol,
				HostIP:    p.AddPortForward.HostIP,
				HostPort:  p.AddPortForward.HostPort,
				GuestIP:   p.AddPortForward.GuestIP,
				GuestPort: p.AddPortForward.GuestPort,
			}
			if verr := t.Orchestrator.AddPortForward(ctx, p.VMName, p.Slot, rule); verr != nil {
				return Fail(verr)
			}
		}
		if p.RemovePortForward != "" {
			if verr := t.Orchestrator.RemovePortForward(ctx, p.VMName, p.Slot, p.RemovePortForward); verr != nil {
				return Fail(verr)
			}
		}
		return Ok(nil)

	default:
		return unknownAction(action, networkManagementActions)
	}
}

func networkKind(raw string) vbox.NetworkKind {
	if raw == string(vbox.NetworkNATNet) {
		return vbox.NetworkNATNet
	}
	return vbox.NetworkHostOnly
}
