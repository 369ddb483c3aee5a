package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/sandraschi/vboxmcp/internal/config"
	"github.com/sandraschi/vboxmcp/internal/mcptools"
	"github.com/sandraschi/vboxmcp/internal/registry"
)

type stubDispatcher struct {
	actions []string
	panics  bool
}

func (s *stubDispatcher) Actions() []string { return s.actions }

func (s *stubDispatcher) Dispatch(ctx context.Context, action string, raw json.RawMessage) *mcptools.Result {
	if s.panics {
		panic("boom")
	}
	return mcptools.Ok(map[string]string{"action": action})
}

func newTestServer(mode config.ToolMode, panics bool) *Server {
	cfg := &config.Config{ToolMode: mode}
	src := registry.ToolSource{
		Name:        "vm_management",
		Category:    "vm",
		Description: "test tool",
		Handler:     &stubDispatcher{actions: []string{"list", "start"}, panics: panics},
		Schemas:     map[string]json.RawMessage{},
	}
	reg := registry.Build(cfg, config.Platform{}, []registry.ToolSource{src}, nil)
	return New(reg, hclog.NewNullLogger())
}

func runLine(t *testing.T, s *Server, line string) map[string]interface{} {
	t.Helper()
	in := strings.NewReader(line + "\n")
	var out bytes.Buffer
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v (%s)", err, out.String())
	}
	return resp
}

func TestInitialize(t *testing.T) {
	s := newTestServer(config.ModeProduction, false)
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %v", resp)
	}
	if result["protocolVersion"] != protocolVersion {
		t.Fatalf("unexpected protocol version: %v", result["protocolVersion"])
	}
}

func TestToolsList(t *testing.T) {
	s := newTestServer(config.ModeProduction, false)
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result := resp["result"].(map[string]interface{})
	tools := result["tools"].([]interface{})
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
}

func TestToolsCall(t *testing.T) {
	s := newTestServer(config.ModeProduction, false)
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"vm_management","arguments":{"action":"start","vm_name":"x"}}}`)
	result := resp["result"].(map[string]interface{})
	if result["success"] != true {
		t.Fatalf("expected success, got %v", resp)
	}
}

func TestToolsCall_PanicRecoveredAsInternalError(t *testing.T) {
	s := newTestServer(config.ModeProduction, true)
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"vm_management","arguments":{"action":"start"}}}`)
	result := resp["result"].(map[string]interface{})
	if result["success"] != false {
		t.Fatalf("expected a failed result after recovering a panic, got %v", resp)
	}
	errObj := result["error"].(map[string]interface{})
	if errObj["kind"] != "InternalError" {
		t.Fatalf("expected InternalError kind, got %v", errObj)
	}
}

func TestMalformedJSON_ReturnsParseError(t *testing.T) {
	s := newTestServer(config.ModeProduction, false)
	resp := runLine(t, s, `{not valid json`)
	errObj := resp["error"].(map[string]interface{})
	if int(errObj["code"].(float64)) != -32700 {
		t.Fatalf("expected -32700, got %v", errObj)
	}
}

func TestUnknownMethod_ReturnsMethodNotFound(t *testing.T) {
	s := newTestServer(config.ModeProduction, false)
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":1,"method":"bogus"}`)
	errObj := resp["error"].(map[string]interface{})
	if int(errObj["code"].(float64)) != -32601 {
		t.Fatalf("expected -32601, got %v", errObj)
	}
}

func TestNotification_ProducesNoResponse(t *testing.T) {
	s := newTestServer(config.ModeProduction, false)
	in := strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")
	var out bytes.Buffer
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output for a notification, got %q", out.String())
	}
}
