package vbox

import (
	"context"
	"fmt"
)

// NetworkKind discriminates the two host-level network resources this
// package can create and remove.
type NetworkKind string

const (
	NetworkHostOnly  NetworkKind = "hostonly"
	NetworkNATNet    NetworkKind = "natnetwork"
)

// ConfigureNIC applies `modifyvm --nicN/--macaddressN/--cableconnectedN`
// and the backing-specific option for slot (0..3). VM must be
// PoweredOff for structural NIC type changes; callers pass an empty
// type to only touch MAC/cable state on a running VM.
func (o *Orchestrator) ConfigureNIC(ctx context.Context, vmRef string, slot int, nicType, backing, mac string, cableConnected *bool) *Error {
	if slot < 0 || slot > 3 {
		return NewError(KindInvalidArgument, "nic slot must be 0..3, got %d", slot)
	}
	n := slot + 1

	return AsError(o.withVMLock(ctx, vmRef, func() error {
		args := []string{"modifyvm", vmRef}
		if nicType != "" {
			args = append(args, fmt.Sprintf("--nic%d", n), nicType)
			switch nicType {
			case "bridged":
				args = append(args, fmt.Sprintf("--bridgeadapter%d", n), backing)
			case "hostonly":
				args = append(args, fmt.Sprintf("--hostonlyadapter%d", n), backing)
			case "intnet":
				args = append(args, fmt.Sprintf("--intnet%d", n), backing)
			case "natnetwork":
				args = append(args, fmt.Sprintf("--nat-network%d", n), backing)
			}
		}
		if mac != "" {
			args = append(args, fmt.Sprintf("--macaddress%d", n), mac)
		}
		if cableConnected != nil {
			state := "off"
			if *cableConnected {
				state = "on"
			}
			args = append(args, fmt.Sprintf("--cableconnected%d", n), state)
		}
		if len(args) <= 2 {
			return nil
		}
		_, verr := o.runWrite(ctx, "modifyvm (nic)", args...)
		return verr
	}))
}

// AddPortForward installs a NAT port-forwarding rule on slot's adapter.
func (o *Orchestrator) AddPortForward(ctx context.Context, vmRef string, slot int, rule NATRule) *Error {
	if slot < 0 || slot > 3 {
		return NewError(KindInvalidArgument, "nic slot must be 0..3, got %d", slot)
	}
	if rule.Name == "" {
		return NewError(KindInvalidArgument, "port forward rule name must not be empty")
	}
	spec := fmt.Sprintf("%s,%s,%s,%d,%s,%d", rule.Name, rule.Protocol, rule.HostIP, rule.HostPort, rule.GuestIP, rule.GuestPort)

	return AsError(o.withVMLock(ctx, vmRef, func() error {
		_, verr := o.runWrite(ctx, "modifyvm (natpf add)", "modifyvm", vmRef,
			fmt.Sprintf("--natpf%d", slot+1), spec)
		return verr
	}))
}

// RemovePortForward deletes a named NAT port-forwarding rule from
// slot's adapter.
func (o *Orchestrator) RemovePortForward(ctx context.Context, vmRef string, slot int, ruleName string) *Error {
	if slot < 0 || slot > 3 {
		return NewError(KindInvalidArgument, "nic slot must be 0..3, got %d", slot)
	}
	return AsError(o.withVMLock(ctx, vmRef, func() error {
		_, verr := o.runWrite(ctx, "modifyvm (natpf delete)", "modifyvm", vmRef,
			fmt.Sprintf("--natpf%d", slot+1), "delete", ruleName)
		return verr
	}))
}

// ListNetworks lists host-only networks via `list hostonlyifs`. NAT
// networks are not listed; CreateHostOnlyNetwork and
// RemoveHostOnlyNetwork manage them but return no network data.
func (o *Orchestrator) ListNetworks(ctx context.Context) ([]HostOnlyNetwork, *Error) {
	res, verr := o.runQuery(ctx, "list hostonlyifs", "list", "hostonlyifs")
	if verr != nil {
		return nil, verr
	}
	return BuildHostOnlyNetworks(ParseTable(res.Stdout)), nil
}

// CreateHostOnlyNetwork or a NAT network, serialized globally since
// these are host resources shared across all VMs.
func (o *Orchestrator) CreateHostOnlyNetwork(ctx context.Context, kind NetworkKind, name string) *Error {
	return AsError(o.withHostNetLock(ctx, func() error {
		var args []string
		switch kind {
		case NetworkNATNet:
			args = []string{"natnetwork", "add", "--netname", name, "--network", "10.0.2.0/24", "--enable"}
		default:
			args = []string{"hostonlyif", "create"}
		}
		_, verr := o.runWrite(ctx, "create host network", args...)
		return verr
	}))
}

// RemoveHostOnlyNetwork tears down a host-only interface or NAT
// network by name.
func (o *Orchestrator) RemoveHostOnlyNetwork(ctx context.Context, kind NetworkKind, name string) *Error {
	return AsError(o.withHostNetLock(ctx, func() error {
		var args []string
		switch kind {
		case NetworkNATNet:
			args = []string{"natnetwork", "remove", "--netname", name}
		default:
			args = []string{"hostonlyif", "remove", name}
		}
		_, verr := o.runWrite(ctx, "remove host network", args...)
		return verr
	}))
}
