package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sandraschi/vboxmcp/internal/config"
	"github.com/sandraschi/vboxmcp/internal/mcptools"
)

// fakeDispatcher is a minimal Dispatcher double so registry tests
// never touch a real Orchestrator.
type fakeDispatcher struct {
	actions []string
	calls   []string
}

func (f *fakeDispatcher) Actions() []string { return f.actions }

func (f *fakeDispatcher) Dispatch(ctx context.Context, action string, raw json.RawMessage) *mcptools.Result {
	f.calls = append(f.calls, action)
	return mcptools.Ok(map[string]string{"action": action})
}

func testSources() []ToolSource {
	return []ToolSource{
		{
			Name:        "vm_management",
			Category:    "vm",
			Description: "vm tool",
			Handler:     &fakeDispatcher{actions: []string{"list", "start"}},
			Schemas:     map[string]json.RawMessage{},
		},
	}
}

func TestBuild_ProductionModeExcludesStandaloneTools(t *testing.T) {
	cfg := &config.Config{ToolMode: config.ModeProduction}
	r := Build(cfg, config.Platform{}, testSources(), nil)

	tools := r.Tools()
	if len(tools) != 1 {
		t.Fatalf("expected exactly 1 tool in production mode, got %d", len(tools))
	}
	if tools[0].Name != "vm_management" {
		t.Fatalf("unexpected tool name %q", tools[0].Name)
	}
}

func TestBuild_TestingModeSynthesizesStandaloneTools(t *testing.T) {
	cfg := &config.Config{ToolMode: config.ModeTesting}
	r := Build(cfg, config.Platform{}, testSources(), nil)

	tools := r.Tools()
	if len(tools) != 3 { // 1 portmanteau + 2 synthesized (list, start)
		t.Fatalf("expected 3 tools in testing mode, got %d", len(tools))
	}
	found := map[string]bool{}
	for _, td := range tools {
		found[td.Name] = true
	}
	for _, want := range []string{"vm_management", "vm_management_list", "vm_management_start"} {
		if !found[want] {
			t.Fatalf("expected tool %q in registry, got %+v", want, tools)
		}
	}
}

func TestBuild_HypervOmittedWhenNotCapable(t *testing.T) {
	cfg := &config.Config{ToolMode: config.ModeProduction}
	hyp := &ToolSource{Name: "hyperv_management", Handler: &fakeDispatcher{actions: []string{"list"}}, Schemas: map[string]json.RawMessage{}}

	r := Build(cfg, config.Platform{HyperVCapable: false}, testSources(), hyp)
	if _, ok := r.Lookup("hyperv_management"); ok {
		t.Fatal("hyperv_management must not be registered when the platform is not Hyper-V capable")
	}
}

func TestBuild_HypervIncludedWhenCapable(t *testing.T) {
	cfg := &config.Config{ToolMode: config.ModeProduction}
	hyp := &ToolSource{Name: "hyperv_management", Handler: &fakeDispatcher{actions: []string{"list"}}, Schemas: map[string]json.RawMessage{}}

	r := Build(cfg, config.Platform{HyperVCapable: true}, testSources(), hyp)
	if _, ok := r.Lookup("hyperv_management"); !ok {
		t.Fatal("hyperv_management must be registered when the platform is Hyper-V capable")
	}
}

func TestDispatch_StandaloneToolIgnoresCallerAction(t *testing.T) {
	cfg := &config.Config{ToolMode: config.ModeTesting}
	fd := &fakeDispatcher{actions: []string{"list", "start"}}
	r := Build(cfg, config.Platform{}, []ToolSource{{Name: "vm_management", Handler: fd, Schemas: map[string]json.RawMessage{}}}, nil)

	res, err := r.Dispatch(context.Background(), "vm_management_start", "ignored-should-not-matter", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if len(fd.calls) != 1 || fd.calls[0] != "start" {
		t.Fatalf("expected the bound action 'start' to be dispatched, got %v", fd.calls)
	}
}

func TestDispatch_UnknownToolIsError(t *testing.T) {
	cfg := &config.Config{ToolMode: config.ModeProduction}
	r := Build(cfg, config.Platform{}, testSources(), nil)

	if _, err := r.Dispatch(context.Background(), "no_such_tool", "list", nil); err == nil {
		t.Fatal("expected an error for an unknown tool name")
	}
}
