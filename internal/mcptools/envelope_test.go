package mcptools

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/sandraschi/vboxmcp/internal/vbox"
)

// fakeRunner is a minimal scripted vbox.ProcessRunner double shared by
// every *_test.go file in this package.
type fakeRunner struct {
	responses map[string]*vbox.RunResult
	calls     []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string]*vbox.RunResult)}
}

func (f *fakeRunner) Run(ctx context.Context, timeout time.Duration, stdin []byte, args ...string) (*vbox.RunResult, error) {
	if len(args) > 0 {
		f.calls = append(f.calls, args[0])
	}
	if res, ok := f.responses[args[0]]; ok {
		return res, nil
	}
	return &vbox.RunResult{ExitCode: 0}, nil
}

func newTestOrchestrator(r *fakeRunner) *vbox.Orchestrator {
	return vbox.NewOrchestrator(r, time.Second, time.Second, hclog.NewNullLogger())
}

func TestOk(t *testing.T) {
	res := Ok(map[string]int{"x": 1})
	if !res.Success || res.Error != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestFail_WrapsVboxError(t *testing.T) {
	res := Fail(vbox.NewError(vbox.KindNotFound, "no such vm: %s", "ghost"))
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error.Kind != string(vbox.KindNotFound) {
		t.Fatalf("unexpected kind: %s", res.Error.Kind)
	}
}

func TestInvalidArgument(t *testing.T) {
	res := InvalidArgument("bad value: %d", 5)
	if res.Success || res.Error.Kind != string(vbox.KindInvalidArgument) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestUnknownAction_ListsAllowed(t *testing.T) {
	res := unknownAction("bogus", []string{"a", "b"})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error.Message == "" {
		t.Fatal("expected a message enumerating allowed actions")
	}
}

func TestDecodeParams_MalformedJSON(t *testing.T) {
	var dst struct{ Name string }
	res := decodeParams([]byte(`{not json`), &dst)
	if res == nil || res.Success {
		t.Fatal("expected an InvalidArgument result for malformed JSON")
	}
}

func TestRequireString_Empty(t *testing.T) {
	if r := requireString("name", "  "); r == nil {
		t.Fatal("expected failure for blank string")
	}
	if r := requireString("name", "ok"); r != nil {
		t.Fatalf("expected nil for non-blank string, got %+v", r)
	}
}
