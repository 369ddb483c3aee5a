// Package hyperv is the Hyper-V structural analogue: the same
// spawn/classify/parse shape as internal/vbox, pointed at PowerShell's
// Hyper-V cmdlets instead of VBoxManage. It is registered only on
// Windows hosts where config.DetectPlatform reports HyperVCapable, and
// it never shares state with the VBoxManage Orchestrator — the two
// backends are independent, each owning its own Process Runner.
package hyperv

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/sandraschi/vboxmcp/internal/vbox"
)

// VM is the subset of Get-VM's Format-List output this package
// surfaces. Hyper-V's own property names are kept rather than mapped
// onto VMRecord's VBoxManage-shaped fields — the two hypervisors don't
// share a wire format, only a calling convention.
type VM struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	CPUUsage         int    `json:"cpu_usage"`
	MemoryAssignedMB int    `json:"memory_assigned_mb"`
	Uptime           string `json:"uptime"`
	Generation       int    `json:"generation"`
}

// Orchestrator spawns powershell.exe/pwsh with a fixed -Command
// argument vector, mirroring vbox.Orchestrator's spawn-then-classify
// run helper (a single run, with no query/write split) but against the
// Hyper-V cmdlet surface.
type Orchestrator struct {
	runner  vbox.ProcessRunner
	log     hclog.Logger
	timeout time.Duration
}

// NewOrchestrator builds a Hyper-V Orchestrator around runner, which is
// ordinarily a *vbox.Runner constructed with "powershell.exe" (or
// "pwsh") as its binary — the Process Runner is hypervisor-agnostic, it
// just spawns an argument vector and captures output.
func NewOrchestrator(runner vbox.ProcessRunner, timeout time.Duration, log hclog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{runner: runner, log: log.Named("hyperv"), timeout: timeout}
}

// run spawns a single PowerShell command line and classifies the
// result. Hyper-V cmdlets take free-form -Command strings rather than
// an argv the way VBoxManage does, so unlike vbox.Orchestrator this
// package's one allowed "argument" is a single fully-formed script.
func (o *Orchestrator) run(ctx context.Context, op, script string) (*vbox.RunResult, *vbox.Error) {
	o.log.Debug("powershell invocation", "op", op, "script", script)
	res, err := o.runner.Run(ctx, o.timeout, nil, "-NoProfile", "-NonInteractive", "-Command", script)
	if err != nil {
		return nil, vbox.NewError(vbox.KindInternalError, "%s: %v", op, err)
	}
	if verr := classify(op, res); verr != nil {
		o.log.Debug("powershell invocation failed", "op", op, "kind", verr.Kind, "message", verr.Message)
		return res, verr
	}
	return res, nil
}

// classifyRules maps PowerShell/Hyper-V error text to the same
// ErrorKind taxonomy vbox.Classify targets, so the wire envelope never
// leaks which backend produced an error.
var classifyRules = []struct {
	substr string
	kind   vbox.ErrorKind
}{
	{"Hyper-V was unable to find a virtual machine", vbox.KindNotFound},
	{"because it is not in the appropriate state", vbox.KindInvalidState},
	{"already exists", vbox.KindAlreadyExists},
	{"Access is denied", vbox.KindPermissionDenied},
	{"parameter is missing", vbox.KindInvalidArgument},
}

func classify(op string, res *vbox.RunResult) *vbox.Error {
	if res.TimedOut {
		return vbox.NewError(vbox.KindTimeout, "%s timed out after %s", op, res.Duration)
	}
	if res.Cancelled {
		return vbox.NewError(vbox.KindCancelled, "%s was cancelled", op)
	}
	if res.ExitCode == 0 {
		return nil
	}
	kind := vbox.KindVBoxError
	for _, rule := range classifyRules {
		if strings.Contains(res.Stderr, rule.substr) {
			kind = rule.kind
			break
		}
	}
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("%s exited with code %d", op, res.ExitCode)
	}
	return &vbox.Error{Kind: kind, Message: msg, Detail: &vbox.Detail{ExitCode: res.ExitCode, StderrTail: msg}}
}

// listScript formats every VM property this package surfaces as
// "Key : Value" lines, blank-line separated, so the generic
// vbox.ParseTable can consume it unmodified.
const listScript = `Get-VM | Format-List Name,State,CPUUsage,MemoryAssigned,Uptime,Generation`

// List returns every VM Hyper-V knows about.
func (o *Orchestrator) List(ctx context.Context) ([]VM, *vbox.Error) {
	res, verr := o.run(ctx, "list", listScript)
	if verr != nil {
		return nil, verr
	}
	var vms []VM
	for _, rec := range vbox.ParseTable(res.Stdout) {
		vms = append(vms, vmFromRecord(rec))
	}
	return vms, nil
}

// Info returns a single VM's record.
func (o *Orchestrator) Info(ctx context.Context, name string) (*VM, *vbox.Error) {
	script := fmt.Sprintf(`Get-VM -Name %s | Format-List Name,State,CPUUsage,MemoryAssigned,Uptime,Generation`, quoteArg(name))
	res, verr := o.run(ctx, "info", script)
	if verr != nil {
		return nil, verr
	}
	recs := vbox.ParseTable(res.Stdout)
	if len(recs) == 0 {
		return nil, vbox.NewError(vbox.KindNotFound, "no such VM: %s", name)
	}
	vm := vmFromRecord(recs[0])
	return &vm, nil
}

// Start powers on a VM.
func (o *Orchestrator) Start(ctx context.Context, name string) *vbox.Error {
	_, verr := o.run(ctx, "start", fmt.Sprintf("Start-VM -Name %s", quoteArg(name)))
	return verr
}

// Stop shuts down a VM. force issues a hard -TurnOff instead of a
// graceful guest shutdown.
func (o *Orchestrator) Stop(ctx context.Context, name string, force bool) *vbox.Error {
	script := fmt.Sprintf("Stop-VM -Name %s", quoteArg(name))
	if force {
		script += " -TurnOff"
	}
	_, verr := o.run(ctx, "stop", script)
	return verr
}

func vmFromRecord(rec vbox.TableRecord) VM {
	vm := VM{
		Name:  rec["Name"],
		State: rec["State"],
	}
	vm.CPUUsage, _ = strconv.Atoi(rec["CPUUsage"])
	vm.MemoryAssignedMB = parseMemoryAssigned(rec["MemoryAssigned"])
	vm.Uptime = rec["Uptime"]
	vm.Generation, _ = strconv.Atoi(rec["Generation"])
	return vm
}

// parseMemoryAssigned converts Hyper-V's MemoryAssigned field, which
// PowerShell renders as a raw byte count, to whole megabytes.
func parseMemoryAssigned(v string) int {
	bytes, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return int(bytes / (1024 * 1024))
}

// quoteArg wraps a VM name in single quotes for PowerShell, doubling
// any embedded single quote per PowerShell's own escaping rule.
func quoteArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
