// Package mcpserver is the transport harness: a minimal, concrete
// stdio JSON-RPC 2.0 loop satisfying the "harness" interface the rest
// of the server is written against. Grounded on the teacher's
// cmd/aegis-mcp/main.go request loop, generalized to read requests
// from an io.Reader and write responses to an io.Writer so tests never
// touch a real stdin/stdout pair.
package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/sandraschi/vboxmcp/internal/registry"
	"github.com/sandraschi/vboxmcp/internal/version"
)

const protocolVersion = "2024-11-05"

const serverInstructions = `vboxmcp exposes VirtualBox host management as MCP tools.

Tools are portmanteau-shaped: each one takes an "action" parameter selecting
the sub-operation (e.g. vm_management with action="start"), plus whatever
parameters that action needs. Call tools/list to see every tool's action set
and parameter schema before calling it.

Long-running operations (cloning a VM, deleting a snapshot with
differencing disks to merge) return {job_id, state: "running"} instead of
blocking; poll with vm_management action="job_status" and cancel with
action="job_cancel".`

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type capabilities struct {
	Tools *struct{} `json:"tools"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      serverInfo   `json:"serverInfo"`
	Capabilities    capabilities `json:"capabilities"`
	Instructions    string       `json:"instructions"`
}

type mcpTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []mcpTool `json:"tools"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Server is the stdio JSON-RPC 2.0 MCP transport harness. It holds no
// VirtualBox state of its own — every tools/call is delegated to the
// Registry, which owns the actual portmanteau handlers.
type Server struct {
	registry *registry.Registry
	log      hclog.Logger
}

// New builds a Server around an already-populated Registry.
func New(reg *registry.Registry, log hclog.Logger) *Server {
	return &Server{registry: reg, log: log.Named("mcpserver")}
}

// Run reads newline-delimited JSON-RPC 2.0 requests from in until EOF
// or ctx is cancelled, writing one response per request to out.
// Notifications (no id) are processed without a response. Malformed
// JSON gets -32700; unknown methods get -32601. A panic anywhere in
// tools/call dispatch is recovered and surfaced as InternalError
// instead of crashing the process — the one place this repo adds a
// safety net the teacher's client/daemon split didn't need, since here
// transport and orchestration share a single process.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req jsonRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			enc.Encode(jsonRPCResponse{
				JSONRPC: "2.0",
				Error:   &rpcError{Code: -32700, Message: "parse error"},
			})
			continue
		}

		if req.ID == nil {
			continue // notification: no response
		}

		result, rpcErr := s.dispatch(ctx, req)

		enc.Encode(jsonRPCResponse{
			JSONRPC: "2.0",
			Result:  result,
			Error:   rpcErr,
			ID:      req.ID,
		})
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req jsonRPCRequest) (result interface{}, rpcErr *rpcError) {
	switch req.Method {
	case "initialize":
		return initializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      serverInfo{Name: "vboxmcp", Version: version.Version()},
			Capabilities:    capabilities{Tools: &struct{}{}},
			Instructions:    serverInstructions,
		}, nil

	case "notifications/initialized":
		return nil, nil

	case "tools/list":
		return toolsListResult{Tools: s.listTools()}, nil

	case "tools/call":
		return s.callTool(ctx, req.Params)

	default:
		return nil, &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}
}

func (s *Server) listTools() []mcpTool {
	descriptors := s.registry.Tools()
	tools := make([]mcpTool, 0, len(descriptors))
	for _, td := range descriptors {
		tools = append(tools, mcpTool{
			Name:        td.Name,
			Description: td.Description,
			InputSchema: inputSchemaFor(td),
		})
	}
	return tools
}

// inputSchemaFor builds the JSON Schema a caller sees in tools/list.
// A standalone (testing-mode synthesized) tool already names its one
// action, so its schema is that action's own parameter schema
// unmodified. A portmanteau tool's schema adds the "action" enum
// discriminator on top of the union of every action's parameters.
func inputSchemaFor(td registry.ToolDescriptor) json.RawMessage {
	if td.Standalone && len(td.Actions) == 1 {
		if len(td.Actions[0].Schema) > 0 {
			return td.Actions[0].Schema
		}
		return json.RawMessage(`{"type":"object"}`)
	}

	names := make([]string, len(td.Actions))
	for i, a := range td.Actions {
		names[i] = a.Name
	}
	enumJSON, _ := json.Marshal(names)
	return json.RawMessage(fmt.Sprintf(
		`{"type":"object","properties":{"action":{"type":"string","enum":%s}},"required":["action"],"additionalProperties":true}`,
		enumJSON,
	))
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (result interface{}, rpcErr *rpcError) {
	defer func() {
		if r := recover(); r != nil {
			result = toolResultError(fmt.Sprintf("internal error: %v", r))
		}
	}()

	var call toolCallParams
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, &rpcError{Code: -32602, Message: "invalid params: " + err.Error()}
	}

	action, err := extractAction(call.Arguments)
	if err != nil {
		return toolResultError(err.Error()), nil
	}

	res, err := s.registry.Dispatch(ctx, call.Name, action, call.Arguments)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	return res, nil
}

// extractAction pulls the "action" field out of a tool call's
// arguments. Standalone tools carry no action field — the registry
// substitutes its bound action regardless of what's passed here — so
// an absent field is not itself an error.
func extractAction(arguments json.RawMessage) (string, error) {
	if len(arguments) == 0 {
		return "", nil
	}
	var withAction struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(arguments, &withAction); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	return withAction.Action, nil
}

func toolResultError(message string) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"error":   map[string]string{"kind": "InternalError", "message": message},
	}
}
