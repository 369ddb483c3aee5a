// Package vbox wraps the VBoxManage command-line tool: spawning it,
// classifying its errors, parsing its output into typed records, and
// serializing concurrent access to a given VM or host resource.
//
// The Orchestrator never keeps its own copy of VM state — every query
// re-derives its answer from VBoxManage on each call, per the package's
// no-persistence design. What it does own is a per-VM mutex so that,
// e.g., a snapshot restore and a concurrent start request on the same
// machine serialize instead of racing against VirtualBox's own
// single-writer-per-machine restriction.
package vbox

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/semaphore"
)

// vmLock is the per-VM entry in the Orchestrator's lock table. Entries
// are created lazily on first reference to a VM's resolved UUID and
// never removed — a VM's lock is cheap to keep around for the life of
// the process, and removing it mid-use would reintroduce exactly the
// race the table exists to prevent. A weighted semaphore of size 1
// stands in for a plain mutex so Acquire can be cancelled via ctx.
type vmLock struct {
	sem *semaphore.Weighted
}

func newVMLock() *vmLock {
	return &vmLock{sem: semaphore.NewWeighted(1)}
}

// Orchestrator is the VBoxManage Orchestrator: the single owner of the
// ProcessRunner, the lock table, and the configured timeouts every
// portmanteau handler calls through.
type Orchestrator struct {
	runner ProcessRunner
	log    hclog.Logger

	queryTimeout time.Duration
	writeTimeout time.Duration

	locksMu sync.Mutex
	locks   map[string]*vmLock

	// hostNetLock serializes host-only network and NAT network
	// create/remove operations, which are not scoped to any one VM.
	hostNetLock *vmLock
}

// NewOrchestrator builds an Orchestrator around the given ProcessRunner.
func NewOrchestrator(runner ProcessRunner, queryTimeout, writeTimeout time.Duration, log hclog.Logger) *Orchestrator {
	if queryTimeout <= 0 {
		queryTimeout = 60 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Minute
	}
	return &Orchestrator{
		runner:       runner,
		log:          log.Named("orchestrator"),
		queryTimeout: queryTimeout,
		writeTimeout: writeTimeout,
		locks:        make(map[string]*vmLock),
		hostNetLock:  newVMLock(),
	}
}

// lockFor returns the lock for key, creating it on first reference.
func (o *Orchestrator) lockFor(key string) *vmLock {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	l, ok := o.locks[key]
	if !ok {
		l = newVMLock()
		o.locks[key] = l
	}
	return l
}

// resolveVMRef resolves vmRef (a VM name or UUID, which VBoxManage
// accepts interchangeably) to its canonical UUID via showvminfo, so
// that a writer passing a name and a concurrent writer passing that
// same VM's UUID serialize against the same lock instead of racing.
func (o *Orchestrator) resolveVMRef(ctx context.Context, vmRef string) (string, *Error) {
	res, verr := o.runQuery(ctx, "showvminfo (resolve)", "showvminfo", vmRef, "--machinereadable")
	if verr != nil {
		return "", verr
	}
	kv, err := ParseKV(res.Stdout)
	if err != nil {
		return "", AsError(err)
	}
	uuid, ok := kv.Get("UUID")
	if !ok {
		return "", NewError(KindInternalError, "showvminfo for %q returned no UUID", vmRef)
	}
	return uuid, nil
}

// withLockKey runs fn while holding the lock for key. Acquisition
// honors ctx cancellation: a caller whose context is done while
// waiting on a contended lock returns Cancelled instead of blocking
// indefinitely.
func (o *Orchestrator) withLockKey(ctx context.Context, key string, fn func() error) error {
	l := o.lockFor(key)
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return NewError(KindCancelled, "acquiring lock: %v", err)
	}
	defer l.sem.Release(1)
	return fn()
}

// withVMLock resolves vmRef to its UUID and runs fn while holding that
// UUID's lock. Use this for any operation on a VM that is expected to
// already exist.
func (o *Orchestrator) withVMLock(ctx context.Context, vmRef string, fn func() error) error {
	uuid, verr := o.resolveVMRef(ctx, vmRef)
	if verr != nil {
		return verr
	}
	return o.withLockKey(ctx, uuid, fn)
}

// withNewVMLock runs fn while holding the lock for name directly,
// without resolving it through showvminfo first — used only by
// CreateVM, where the machine does not exist yet and so has no UUID to
// resolve.
func (o *Orchestrator) withNewVMLock(ctx context.Context, name string, fn func() error) error {
	return o.withLockKey(ctx, name, fn)
}

// withHostNetLock runs fn while holding the host-network lock.
func (o *Orchestrator) withHostNetLock(ctx context.Context, fn func() error) error {
	if err := o.hostNetLock.sem.Acquire(ctx, 1); err != nil {
		return NewError(KindCancelled, "acquiring host network lock: %v", err)
	}
	defer o.hostNetLock.sem.Release(1)
	return fn()
}

// run is the common low-level entry point: spawn VBoxManage with args,
// classify the result, and return a typed *Error on any non-zero
// outcome. op is used only for error messages.
func (o *Orchestrator) run(ctx context.Context, op string, timeout time.Duration, stdin []byte, args ...string) (*RunResult, *Error) {
	o.log.Debug("vboxmanage invocation", "op", op, "args", args)
	res, err := o.runner.Run(ctx, timeout, stdin, args...)
	if err != nil {
		return nil, NewError(KindInternalError, "%s: %v", op, err)
	}
	if verr := classifyResult(op, res); verr != nil {
		o.log.Debug("vboxmanage invocation failed", "op", op, "kind", verr.Kind, "message", verr.Message)
		return res, verr
	}
	return res, nil
}

// runQuery runs a read-only VBoxManage invocation under queryTimeout.
func (o *Orchestrator) runQuery(ctx context.Context, op string, args ...string) (*RunResult, *Error) {
	return o.run(ctx, op, o.queryTimeout, nil, args...)
}

// runWrite runs a mutating VBoxManage invocation under writeTimeout.
func (o *Orchestrator) runWrite(ctx context.Context, op string, args ...string) (*RunResult, *Error) {
	return o.run(ctx, op, o.writeTimeout, nil, args...)
}

// runWriteStreaming runs a mutating VBoxManage invocation under
// writeTimeout, calling onProgress with the percent parsed from each
// line of stdout as it arrives. If the configured runner doesn't
// implement ProgressRunner (test doubles, typically), it falls back to
// the buffered runWrite and reports a single completion percent —
// callers get correct final state either way, only the gradual
// progress differs.
func (o *Orchestrator) runWriteStreaming(ctx context.Context, op string, onProgress func(int), args ...string) (*RunResult, *Error) {
	pr, ok := o.runner.(ProgressRunner)
	if !ok {
		res, verr := o.runWrite(ctx, op, args...)
		if res != nil && onProgress != nil {
			onProgress(ProgressFromOutput(res.Stdout))
		}
		return res, verr
	}

	o.log.Debug("vboxmanage invocation", "op", op, "args", args, "streaming", true)
	onLine := func(line string) {
		if onProgress != nil {
			onProgress(ProgressFromOutput(line))
		}
	}
	res, err := pr.RunStreaming(ctx, o.writeTimeout, onLine, args...)
	if err != nil {
		return nil, NewError(KindInternalError, "%s: %v", op, err)
	}
	if verr := classifyResult(op, res); verr != nil {
		o.log.Debug("vboxmanage invocation failed", "op", op, "kind", verr.Kind, "message", verr.Message)
		return res, verr
	}
	return res, nil
}
