package vbox

import (
	"context"
	"sync"
	"time"
)

// recordedCall captures one invocation made through a fakeRunner, used
// by the state-machine guard tests to assert VBoxManage was never
// spawned for a disallowed transition.
type recordedCall struct {
	args []string
}

// fakeRunner is a recording ProcessRunner double. responses is keyed
// by the first argument (the VBoxManage verb); calls not found there
// fall back to defaultResponse.
type fakeRunner struct {
	mu              sync.Mutex
	calls           []recordedCall
	responses       map[string]*RunResult
	defaultResponse *RunResult
	delay           time.Duration
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		responses: make(map[string]*RunResult),
		// Includes a UUID so resolveVMRef's showvminfo lookup succeeds
		// by default for tests that don't care about VM state.
		defaultResponse: &RunResult{ExitCode: 0, Stdout: `UUID="u-default"
`},
	}
}

func (f *fakeRunner) Run(ctx context.Context, timeout time.Duration, stdin []byte, args ...string) (*RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{args: append([]string{}, args...)})
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return &RunResult{ExitCode: -1, Cancelled: true}, nil
		}
	}

	verb := ""
	if len(args) > 0 {
		verb = args[0]
	}
	if res, ok := f.responses[verb]; ok {
		return res, nil
	}
	return f.defaultResponse, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) lastArgs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1].args
}
