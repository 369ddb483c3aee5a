package vbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// StartMode is a startvm --type value.
type StartMode string

const (
	StartHeadless StartMode = "headless"
	StartGUI      StartMode = "gui"
	StartSDL      StartMode = "sdl"
)

// StopMode is how stop_vm asks a running VM to power down.
type StopMode string

const (
	StopACPI      StopMode = "acpi"
	StopPoweroff  StopMode = "poweroff"
	StopSave      StopMode = "save"
)

// CloneMode distinguishes a full copy from a differencing linked clone.
type CloneMode string

const (
	CloneFull   CloneMode = "full"
	CloneLinked CloneMode = "linked"
)

// transitionOp names one column of the §4.D state-machine guard table.
type transitionOp string

const (
	opStart             transitionOp = "start"
	opStopACPI          transitionOp = "stop_acpi"
	opStopPoweroff      transitionOp = "stop_poweroff"
	opSave              transitionOp = "save"
	opResume            transitionOp = "resume"
	opPause             transitionOp = "pause"
	opSnapshot          transitionOp = "snapshot"
	opRestore           transitionOp = "restore"
	opModifyStructural  transitionOp = "modify_structural"
)

// transitionTable is the authoritative state-machine guard table. A
// missing (state, op) entry defaults to disallowed.
var transitionTable = map[VMState]map[transitionOp]bool{
	StatePoweredOff: {
		opStart:            true,
		opSnapshot:         true,
		opRestore:          true,
		opModifyStructural: true,
	},
	StateRunning: {
		opStopACPI:     true,
		opStopPoweroff: true,
		opSave:         true,
		opPause:        true,
		opSnapshot:     true,
	},
	StatePaused: {
		opStopACPI:     true,
		opStopPoweroff: true,
		opResume:       true,
		opSnapshot:     true,
	},
	StateSaved: {
		opStart:    true, // resumes from saved state
		opResume:   true,
		opSnapshot: true,
		opRestore:  true,
	},
}

// guardTransition returns InvalidState if op is not permitted from
// state, without invoking VBoxManage — satisfies the §8 invariant that
// disallowed transitions never reach the Process Runner.
func guardTransition(state VMState, op transitionOp) *Error {
	if allowed, ok := transitionTable[state]; ok && allowed[op] {
		return nil
	}
	return NewError(KindInvalidState, "operation %q is not valid from state %q", op, state)
}

// ListVMs runs `list vms` and, if details is requested, fans out a
// concurrent `showvminfo --machinereadable` per VM via errgroup,
// bounded by a small worker cap since readers run unrestricted.
func (o *Orchestrator) ListVMs(ctx context.Context, details bool) ([]VMSummary, []*VMRecord, *Error) {
	res, verr := o.runQuery(ctx, "list vms", "list", "vms")
	if verr != nil {
		return nil, nil, verr
	}
	refs := ParseTable(normalizeListVMsOutput(res.Stdout))
	summaries := make([]VMSummary, 0, len(refs))
	for _, r := range refs {
		summaries = append(summaries, VMSummary{Name: r["name"], ID: r["uuid"]})
	}

	running := make(map[string]bool)
	if runRes, rverr := o.runQuery(ctx, "list runningvms", "list", "runningvms"); rverr == nil {
		for _, r := range ParseTable(normalizeListVMsOutput(runRes.Stdout)) {
			running[r["uuid"]] = true
		}
	}
	for i := range summaries {
		if running[summaries[i].ID] {
			summaries[i].State = StateRunning
		} else {
			summaries[i].State = StatePoweredOff
		}
	}

	if !details {
		return summaries, nil, nil
	}

	records := make([]*VMRecord, len(summaries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, s := range summaries {
		i, s := i, s
		g.Go(func() error {
			rec, verr := o.GetVMInfo(gctx, s.ID)
			if verr != nil {
				return verr
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summaries, nil, AsError(err)
	}
	return summaries, records, nil
}

// normalizeListVMsOutput rewrites `list vms`' quoted "name" {uuid} lines
// into Key: value pairs ParseTable understands.
func normalizeListVMsOutput(output string) string {
	var b strings.Builder
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		open := strings.IndexByte(line, '"')
		closeQuote := strings.LastIndexByte(line, '"')
		braceOpen := strings.IndexByte(line, '{')
		braceClose := strings.IndexByte(line, '}')
		if open < 0 || closeQuote <= open || braceOpen < 0 || braceClose <= braceOpen {
			continue
		}
		name := line[open+1 : closeQuote]
		uuid := line[braceOpen+1 : braceClose]
		fmt.Fprintf(&b, "name: %s\nuuid: %s\n\n", name, uuid)
	}
	return b.String()
}

// GetVMInfo runs `showvminfo --machinereadable` for vmRef (a name or
// UUID) and builds the typed VMRecord.
func (o *Orchestrator) GetVMInfo(ctx context.Context, vmRef string) (*VMRecord, *Error) {
	res, verr := o.runQuery(ctx, "showvminfo", "showvminfo", vmRef, "--machinereadable")
	if verr != nil {
		return nil, verr
	}
	kv, err := ParseKV(res.Stdout)
	if err != nil {
		return nil, AsError(err)
	}
	rec, err := BuildVMRecord(kv)
	if err != nil {
		return nil, AsError(err)
	}
	return rec, nil
}

// currentState resolves vmRef's live state by shelling to showvminfo.
// Used internally by writers to evaluate the state-machine guard.
func (o *Orchestrator) currentState(ctx context.Context, vmRef string) (VMState, *Error) {
	rec, verr := o.GetVMInfo(ctx, vmRef)
	if verr != nil {
		return "", verr
	}
	return rec.State, nil
}

// CreateVM runs the multi-step createvm/modifyvm/createmedium/storagectl/
// storageattach sequence, rolling back via the compensating-action log
// on any intermediate failure.
func (o *Orchestrator) CreateVM(ctx context.Context, name, osType string, memoryMB, cpuCount, diskSizeMB int, firmware Firmware, networkType string) (*VMRecord, *Error) {
	if memoryMB < 4 {
		return nil, NewError(KindInvalidArgument, "memory_mb must be at least 4, got %d", memoryMB)
	}
	if cpuCount < 1 {
		return nil, NewError(KindInvalidArgument, "cpu_count must be at least 1, got %d", cpuCount)
	}
	if diskSizeMB < 1 {
		return nil, NewError(KindInvalidArgument, "disk_size_mb must be positive, got %d", diskSizeMB)
	}

	var undo undoLog
	vmErr := o.withNewVMLock(ctx, name, func() error {
		if _, verr := o.runWrite(ctx, "createvm", "createvm", "--name", name, "--ostype", osType, "--register"); verr != nil {
			return verr
		}
		undo.push(func() error {
			_, verr := o.runWrite(context.Background(), "unregistervm (rollback)", "unregistervm", name, "--delete")
			return verr
		})

		modifyArgs := []string{"modifyvm", name,
			"--memory", strconv.Itoa(memoryMB),
			"--cpus", strconv.Itoa(cpuCount),
		}
		if firmware == FirmwareEFI {
			modifyArgs = append(modifyArgs, "--firmware", "efi")
		} else {
			modifyArgs = append(modifyArgs, "--firmware", "bios")
		}
		if networkType != "" {
			modifyArgs = append(modifyArgs, "--nic1", networkType)
		}
		if _, verr := o.runWrite(ctx, "modifyvm", modifyArgs...); verr != nil {
			return verr
		}

		diskPath := fmt.Sprintf("%s.vdi", name)
		if _, verr := o.runWrite(ctx, "createmedium", "createmedium", "disk",
			"--filename", diskPath, "--size", strconv.Itoa(diskSizeMB)); verr != nil {
			return verr
		}
		undo.push(func() error {
			_, verr := o.runWrite(context.Background(), "closemedium (rollback)", "closemedium", "disk", diskPath, "--delete")
			return verr
		})

		if _, verr := o.runWrite(ctx, "storagectl", "storagectl", name,
			"--name", "SATA Controller", "--add", "sata", "--controller", "IntelAhci"); verr != nil {
			return verr
		}

		if _, verr := o.runWrite(ctx, "storageattach", "storageattach", name,
			"--storagectl", "SATA Controller", "--port", "0", "--device", "0",
			"--type", "hdd", "--medium", diskPath); verr != nil {
			return verr
		}

		return nil
	})

	if vmErr != nil {
		verr := AsError(vmErr)
		if rollbackErr := undo.run(); rollbackErr != nil {
			verr.Detail = mergeRollbackDetail(verr.Detail, rollbackErr)
		}
		return nil, verr
	}

	return o.GetVMInfo(ctx, name)
}

// StartVM runs `startvm --type <mode>`, refusing if the VM is already
// running or otherwise not in a startable state.
func (o *Orchestrator) StartVM(ctx context.Context, vmRef string, mode StartMode) (VMState, *Error) {
	if mode == "" {
		mode = StartHeadless
	}
	var result VMState
	err := o.withVMLock(ctx, vmRef, func() error {
		state, verr := o.currentState(ctx, vmRef)
		if verr != nil {
			return verr
		}
		if gerr := guardTransition(state, opStart); gerr != nil {
			return gerr
		}
		if _, verr := o.runWrite(ctx, "startvm", "startvm", vmRef, "--type", string(mode)); verr != nil {
			return verr
		}
		result = StateRunning
		return nil
	})
	if err != nil {
		return "", AsError(err)
	}
	return result, nil
}

// StopVM issues acpipowerbutton, poweroff, or savestate depending on
// mode. acpi returns immediately without waiting for guest shutdown.
func (o *Orchestrator) StopVM(ctx context.Context, vmRef string, mode StopMode) *Error {
	op := opStopPoweroff
	switch mode {
	case StopACPI:
		op = opStopACPI
	case StopSave:
		op = opSave
	}

	return AsError(o.withVMLock(ctx, vmRef, func() error {
		state, verr := o.currentState(ctx, vmRef)
		if verr != nil {
			return verr
		}
		if gerr := guardTransition(state, op); gerr != nil {
			return gerr
		}

		var args []string
		switch mode {
		case StopACPI:
			args = []string{"controlvm", vmRef, "acpipowerbutton"}
		case StopSave:
			args = []string{"controlvm", vmRef, "savestate"}
		default:
			args = []string{"controlvm", vmRef, "poweroff"}
		}
		_, verr = o.runWrite(ctx, "controlvm stop", args...)
		return verr
	}))
}

// PauseVM suspends a Running VM.
func (o *Orchestrator) PauseVM(ctx context.Context, vmRef string) *Error {
	return AsError(o.withVMLock(ctx, vmRef, func() error {
		state, verr := o.currentState(ctx, vmRef)
		if verr != nil {
			return verr
		}
		if gerr := guardTransition(state, opPause); gerr != nil {
			return gerr
		}
		_, verr = o.runWrite(ctx, "controlvm pause", "controlvm", vmRef, "pause")
		return verr
	}))
}

// ResumeVM resumes a Paused or Saved VM.
func (o *Orchestrator) ResumeVM(ctx context.Context, vmRef string) *Error {
	return AsError(o.withVMLock(ctx, vmRef, func() error {
		state, verr := o.currentState(ctx, vmRef)
		if verr != nil {
			return verr
		}
		if gerr := guardTransition(state, opResume); gerr != nil {
			return gerr
		}
		if state == StateSaved {
			_, verr = o.runWrite(ctx, "startvm (resume)", "startvm", vmRef, "--type", string(StartHeadless))
		} else {
			_, verr = o.runWrite(ctx, "controlvm resume", "controlvm", vmRef, "resume")
		}
		return verr
	}))
}

// ResetVM hard-resets a Running VM; VBoxManage itself enforces the
// running precondition, so no guard-table entry exists for it — the
// failure surfaces as an InvalidState VBoxError from the Error Classifier.
func (o *Orchestrator) ResetVM(ctx context.Context, vmRef string) *Error {
	return AsError(o.withVMLock(ctx, vmRef, func() error {
		_, verr := o.runWrite(ctx, "controlvm reset", "controlvm", vmRef, "reset")
		return verr
	}))
}

// DeleteVM unregisters vmRef, optionally deleting its attached media.
// Not idempotent: a second call on an already-deleted VM returns
// NotFound, per §8's idempotence laws.
func (o *Orchestrator) DeleteVM(ctx context.Context, vmRef string, deleteMedia bool) *Error {
	return AsError(o.withVMLock(ctx, vmRef, func() error {
		args := []string{"unregistervm", vmRef}
		if deleteMedia {
			args = append(args, "--delete")
		}
		_, verr := o.runWrite(ctx, "unregistervm", args...)
		return verr
	}))
}

// CloneVM registers and runs a clonevm invocation. Linked clones
// without a snapshot reference fail InvalidArgument before any
// VBoxManage invocation, resolving §9's open question about the
// source's inconsistent linked-clone validation.
func (o *Orchestrator) CloneVM(ctx context.Context, vmRef, newName string, mode CloneMode, snapshot string, onProgress func(int)) (*RunResult, *Error) {
	if mode == CloneLinked && snapshot == "" {
		return nil, NewError(KindInvalidArgument, "linked clones require a snapshot reference")
	}

	args := []string{"clonevm", vmRef, "--name", newName, "--register"}
	if mode == CloneLinked {
		args = append(args, "--snapshot", snapshot, "--options", "link")
	}

	var res *RunResult
	err := o.withVMLock(ctx, vmRef, func() error {
		var verr *Error
		res, verr = o.runWriteStreaming(ctx, "clonevm", onProgress, args...)
		if verr != nil {
			return verr
		}
		return nil
	})
	if err != nil {
		return nil, AsError(err)
	}
	return res, nil
}

// mergeRollbackDetail folds a rollback failure into an existing error
// Detail without replacing the primary error, per §7's propagation
// policy.
func mergeRollbackDetail(existing *Detail, rollbackErr error) *Detail {
	if existing == nil {
		existing = &Detail{}
	}
	tail := existing.StderrTail
	if tail != "" {
		tail += "\n"
	}
	tail += "rollback: " + rollbackErr.Error()
	existing.StderrTail = tail
	return existing
}
