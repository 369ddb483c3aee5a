// vboxmcp is an MCP server exposing VirtualBox host management over
// stdio. It wires the VBoxManage Process Runner, the VBox
// Orchestrator, the Job Tracker, and the Tool Registry into the
// stdio JSON-RPC transport harness, and runs until stdin closes or it
// receives SIGINT/SIGTERM.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/sandraschi/vboxmcp/internal/config"
	"github.com/sandraschi/vboxmcp/internal/hyperv"
	"github.com/sandraschi/vboxmcp/internal/jobs"
	"github.com/sandraschi/vboxmcp/internal/mcpserver"
	"github.com/sandraschi/vboxmcp/internal/mcptools"
	"github.com/sandraschi/vboxmcp/internal/obslog"
	"github.com/sandraschi/vboxmcp/internal/registry"
	"github.com/sandraschi/vboxmcp/internal/vbox"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "vboxmcp:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	log := obslog.New(cfg.LogLevel)

	binary, err := cfg.ResolveVBoxManage()
	if err != nil {
		return fmt.Errorf("resolving VBoxManage: %w", err)
	}

	vboxRunner, err := vbox.NewRunner(binary, cfg.SubprocessEnv(), cfg.TerminateGrace, log)
	if err != nil {
		return fmt.Errorf("starting process runner: %w", err)
	}

	orch := vbox.NewOrchestrator(vboxRunner, cfg.QueryTimeout, cfg.WriteTimeout, log)
	tracker := jobs.NewTracker(cfg.JobRetention, cfg.MaxRetainedJobs, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gcLoop, stopGC := context.WithCancel(ctx)
	defer stopGC()
	go tracker.RunGCLoop(gcLoop, time.Minute)

	platform := config.DetectPlatform(nil)
	reg := buildRegistry(cfg, platform, orch, tracker, log)

	server := mcpserver.New(reg, log)

	log.Info("vboxmcp ready", "tool_mode", cfg.ToolMode, "vboxmanage", binary, "hyperv_capable", platform.HyperVCapable)

	err = server.Run(ctx, os.Stdin, os.Stdout)

	log.Info("draining job tracker before exit")
	drainDeadline := time.After(10 * time.Second)
	for _, snap := range pendingJobs(tracker) {
		tracker.Cancel(snap.ID)
	}
	select {
	case <-drainDeadline:
	case <-ctx.Done():
	}

	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// pendingJobs returns the subset of Status snapshots still running, so
// shutdown can request their cancellation instead of abandoning them
// silently.
func pendingJobs(tracker *jobs.Tracker) []jobs.Snapshot {
	var running []jobs.Snapshot
	for _, snap := range tracker.Snapshots() {
		if snap.State == jobs.StateRunning || snap.State == jobs.StatePending {
			running = append(running, snap)
		}
	}
	return running
}

func buildRegistry(cfg *config.Config, platform config.Platform, orch *vbox.Orchestrator, tracker *jobs.Tracker, log hclog.Logger) *registry.Registry {
	vmMgmt := &mcptools.VMManagement{Orchestrator: orch, Jobs: tracker}
	netMgmt := &mcptools.NetworkManagement{Orchestrator: orch}
	snapMgmt := &mcptools.SnapshotManagement{Orchestrator: orch, Jobs: tracker}
	storMgmt := &mcptools.StorageManagement{Orchestrator: orch}
	sysMgmt := &mcptools.SystemManagement{Orchestrator: orch}

	core := []registry.ToolSource{
		{
			Name:        "vm_management",
			Category:    "vm",
			Description: "Create, start, stop, clone, and inspect VirtualBox virtual machines; poll or cancel background jobs.",
			Handler:     vmMgmt,
			Schemas:     vmManagementSchemas,
		},
		{
			Name:        "network_management",
			Category:    "network",
			Description: "Manage host-only/NAT networks and per-VM network adapters, including port forwarding.",
			Handler:     netMgmt,
			Schemas:     networkManagementSchemas,
		},
		{
			Name:        "snapshot_management",
			Category:    "snapshot",
			Description: "Create, restore, delete, and list VM snapshots.",
			Handler:     snapMgmt,
			Schemas:     snapshotManagementSchemas,
		},
		{
			Name:        "storage_management",
			Category:    "storage",
			Description: "Manage storage controllers and attached virtual disks.",
			Handler:     storMgmt,
			Schemas:     storageManagementSchemas,
		},
		{
			Name:        "system_management",
			Category:    "system",
			Description: "Host-level queries: VirtualBox version, supported guest OS types, host info, VM metrics, and screenshots.",
			Handler:     sysMgmt,
			Schemas:     systemManagementSchemas,
		},
	}

	var hypervSource *registry.ToolSource
	if platform.HyperVCapable {
		hypervRunner, err := vbox.NewRunner(powershellBinary(), nil, cfg.TerminateGrace, log)
		if err != nil {
			log.Warn("hyper-v capable but no usable PowerShell host found, omitting hyperv_management", "error", err)
		} else {
			hypervOrch := hyperv.NewOrchestrator(hypervRunner, cfg.QueryTimeout, log)
			hypervMgmt := &mcptools.HypervManagement{Orchestrator: hypervOrch}
			hypervSource = &registry.ToolSource{
				Name:        "hyperv_management",
				Category:    "hyperv",
				Description: "Structural analogue of vm_management against Hyper-V, available only on Hyper-V capable Windows hosts.",
				Handler:     hypervMgmt,
				Schemas:     hypervManagementSchemas,
			}
		}
	}

	return registry.Build(cfg, platform, core, hypervSource)
}

func powershellBinary() string {
	if _, err := os.Stat(`C:\Windows\System32\WindowsPowerShell\v1.0\powershell.exe`); err == nil {
		return `C:\Windows\System32\WindowsPowerShell\v1.0\powershell.exe`
	}
	return "powershell.exe"
}

func rawJSON(s string) json.RawMessage { return json.RawMessage(s) }

var vmManagementSchemas = map[string]json.RawMessage{
	"list": rawJSON(`{"type":"object","properties":{
		"details":{"type":"boolean","description":"include full VMRecord per machine instead of just name/state"}
	}}`),
	"create": rawJSON(`{"type":"object","properties":{
		"name":{"type":"string"},
		"os_type":{"type":"string","description":"VBoxManage guest OS type id, e.g. Ubuntu_64"},
		"memory_mb":{"type":"integer","minimum":4},
		"cpu_count":{"type":"integer","minimum":1},
		"disk_size_mb":{"type":"integer","minimum":1},
		"firmware":{"type":"string","enum":["BIOS","EFI"]},
		"network_type":{"type":"string","enum":["nat","bridged","hostonly","intnet","natnetwork","null"]}
	},"required":["name","os_type"]}`),
	"start": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},
		"mode":{"type":"string","enum":["headless","gui","sdl"]}
	},"required":["vm_name"]}`),
	"stop": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},
		"mode":{"type":"string","enum":["acpi","poweroff","save"]}
	},"required":["vm_name"]}`),
	"delete": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},
		"delete_media":{"type":"boolean"}
	},"required":["vm_name"]}`),
	"clone": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},
		"new_name":{"type":"string"},
		"mode":{"type":"string","enum":["full","linked"]},
		"snapshot":{"type":"string","description":"required when mode is linked"}
	},"required":["vm_name","new_name"]}`),
	"reset":  rawJSON(`{"type":"object","properties":{"vm_name":{"type":"string"}},"required":["vm_name"]}`),
	"pause":  rawJSON(`{"type":"object","properties":{"vm_name":{"type":"string"}},"required":["vm_name"]}`),
	"resume": rawJSON(`{"type":"object","properties":{"vm_name":{"type":"string"}},"required":["vm_name"]}`),
	"info":   rawJSON(`{"type":"object","properties":{"vm_name":{"type":"string"}},"required":["vm_name"]}`),
	"job_status": rawJSON(`{"type":"object","properties":{"job_id":{"type":"string"}},"required":["job_id"]}`),
	"job_cancel": rawJSON(`{"type":"object","properties":{"job_id":{"type":"string"}},"required":["job_id"]}`),
}

var networkManagementSchemas = map[string]json.RawMessage{
	"list_networks": rawJSON(`{"type":"object","properties":{}}`),
	"create_network": rawJSON(`{"type":"object","properties":{
		"kind":{"type":"string","enum":["hostonly","natnetwork"]},
		"name":{"type":"string"}
	},"required":["name"]}`),
	"remove_network": rawJSON(`{"type":"object","properties":{
		"kind":{"type":"string","enum":["hostonly","natnetwork"]},
		"name":{"type":"string"}
	},"required":["name"]}`),
	"list_adapters": rawJSON(`{"type":"object","properties":{"vm_name":{"type":"string"}},"required":["vm_name"]}`),
	"configure_adapter": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},
		"slot":{"type":"integer","minimum":0,"maximum":3},
		"type":{"type":"string","enum":["nat","bridged","hostonly","intnet","natnetwork","null"]},
		"backing":{"type":"string"},
		"mac":{"type":"string"},
		"cable_connected":{"type":"boolean"},
		"add_port_forward":{"type":"object","properties":{
			"name":{"type":"string"},"protocol":{"type":"string","enum":["tcp","udp"]},
			"host_ip":{"type":"string"},"host_port":{"type":"integer"},
			"guest_ip":{"type":"string"},"guest_port":{"type":"integer"}
		}},
		"remove_port_forward":{"type":"string","description":"rule name to remove"}
	},"required":["vm_name","slot"]}`),
}

var snapshotManagementSchemas = map[string]json.RawMessage{
	"list": rawJSON(`{"type":"object","properties":{"vm_name":{"type":"string"}},"required":["vm_name"]}`),
	"create": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},"name":{"type":"string"},
		"description":{"type":"string"},"live":{"type":"boolean","description":"accepted but not forwarded; the snapshot is taken without VBoxManage's --live flag"}
	},"required":["vm_name","name"]}`),
	"restore": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},"snapshot":{"type":"string"}
	},"required":["vm_name","snapshot"]}`),
	"delete": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},"snapshot":{"type":"string"}
	},"required":["vm_name","snapshot"]}`),
}

var storageManagementSchemas = map[string]json.RawMessage{
	"list_controllers": rawJSON(`{"type":"object","properties":{"vm_name":{"type":"string"}},"required":["vm_name"]}`),
	"create_controller": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},"name":{"type":"string"},
		"bus":{"type":"string","enum":["IDE","SATA","SCSI","NVMe","USB","Floppy"]}
	},"required":["vm_name","name","bus"]}`),
	"remove_controller": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},"name":{"type":"string"}
	},"required":["vm_name","name"]}`),
	"list_disks": rawJSON(`{"type":"object","properties":{"vm_name":{"type":"string"}},"required":["vm_name"]}`),
	"create_disk": rawJSON(`{"type":"object","properties":{
		"path":{"type":"string"},"size_mb":{"type":"integer","minimum":1},
		"format":{"type":"string","enum":["VDI","VMDK","VHD"]}
	},"required":["path","size_mb"]}`),
	"attach_disk": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},"controller_name":{"type":"string"},
		"port":{"type":"integer"},"device":{"type":"integer"},
		"medium_path":{"type":"string"}
	},"required":["vm_name","controller_name","medium_path"]}`),
}

var systemManagementSchemas = map[string]json.RawMessage{
	"host_info":    rawJSON(`{"type":"object","properties":{}}`),
	"vbox_version": rawJSON(`{"type":"object","properties":{}}`),
	"ostypes":      rawJSON(`{"type":"object","properties":{}}`),
	"metrics":      rawJSON(`{"type":"object","properties":{"vm_name":{"type":"string"}},"required":["vm_name"]}`),
	"screenshot": rawJSON(`{"type":"object","properties":{
		"vm_name":{"type":"string"},"dest_path":{"type":"string"}
	},"required":["vm_name","dest_path"]}`),
}

var hypervManagementSchemas = map[string]json.RawMessage{
	"list":  rawJSON(`{"type":"object","properties":{}}`),
	"info":  rawJSON(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`),
	"start": rawJSON(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`),
	"stop": rawJSON(`{"type":"object","properties":{
		"name":{"type":"string"},"force":{"type":"boolean"}
	},"required":["name"]}`),
}
