// Package registry builds the Tool Registry: the literal, in-memory
// table of ToolDescriptors the Discovery Surface and the MCP transport
// harness read from. It never invokes VBoxManage or PowerShell itself
// — population is a pure function of TOOL_MODE and the one-time
// platform capability probe.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sandraschi/vboxmcp/internal/config"
	"github.com/sandraschi/vboxmcp/internal/mcptools"
)

// Dispatcher is the shape every portmanteau tool in internal/mcptools
// satisfies. Kept minimal and hand-written rather than discovered via
// reflection, per the explicit-schema design this registry follows.
type Dispatcher interface {
	Actions() []string
	Dispatch(ctx context.Context, action string, raw json.RawMessage) *mcptools.Result
}

// ActionDescriptor documents one action of a portmanteau tool: its
// name and the JSON Schema fragment for its parameters.
type ActionDescriptor struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

// ToolDescriptor is a single registered MCP tool — either a
// portmanteau tool (Actions lists every action it supports) or a
// testing-mode standalone tool synthesized from one portmanteau
// action (Actions has exactly one entry, Standalone true).
type ToolDescriptor struct {
	Name        string             `json:"name"`
	Category    string             `json:"category"`
	Description string             `json:"description"`
	Actions     []ActionDescriptor `json:"actions"`
	Exposure    string             `json:"exposure"`

	// Standalone is true for a testing-mode synthesized tool: calling
	// it never requires an "action" parameter, since it already names
	// the one action it performs.
	Standalone bool `json:"-"`

	handler     Dispatcher
	boundAction string // non-empty only when Standalone
}

// ToolSource is the fixed, hand-written description of one
// portmanteau tool: its handler, its documentation, and the JSON
// Schema fragment for each of its actions. main.go builds one
// ToolSource per file in internal/mcptools.
type ToolSource struct {
	Name        string
	Category    string
	Description string
	Handler     Dispatcher
	Schemas     map[string]json.RawMessage
}

// Registry is the populated, read-only tool table.
type Registry struct {
	tools  []ToolDescriptor
	byName map[string]*ToolDescriptor
}

// Build constructs the Registry from the fixed set of production
// portmanteau sources plus, when platform.HyperVCapable is true, the
// Hyper-V structural analogue, filtered by cfg.ToolMode exactly as
// spec.md §4.F requires: production gets the core tools (and
// hyperv_management when capable); testing additionally synthesizes
// one standalone tool per declared action of every registered tool.
func Build(cfg *config.Config, platform config.Platform, core []ToolSource, hyperv *ToolSource) *Registry {
	r := &Registry{byName: make(map[string]*ToolDescriptor)}

	sources := core
	if platform.HyperVCapable && hyperv != nil {
		sources = append(append([]ToolSource{}, core...), *hyperv)
	}

	for _, src := range sources {
		td := ToolDescriptor{
			Name:        src.Name,
			Category:    src.Category,
			Description: src.Description,
			Exposure:    "production",
			handler:     src.Handler,
		}
		for _, action := range src.Handler.Actions() {
			td.Actions = append(td.Actions, ActionDescriptor{Name: action, Schema: src.Schemas[action]})
		}
		r.add(td)

		if cfg.ToolMode != config.ModeTesting {
			continue
		}
		for _, action := range src.Handler.Actions() {
			r.add(ToolDescriptor{
				Name:        src.Name + "_" + action,
				Category:    src.Category,
				Description: fmt.Sprintf("%s (%s action, synthesized for TOOL_MODE=testing)", src.Description, action),
				Exposure:    "testing",
				Actions:     []ActionDescriptor{{Name: action, Schema: src.Schemas[action]}},
				Standalone:  true,
				handler:     src.Handler,
				boundAction: action,
			})
		}
	}

	return r
}

func (r *Registry) add(td ToolDescriptor) {
	r.tools = append(r.tools, td)
	r.byName[td.Name] = &r.tools[len(r.tools)-1]
}

// Tools returns every registered ToolDescriptor, in registration
// order — each production tool followed directly (in testing mode) by
// the standalone tools synthesized from its actions.
func (r *Registry) Tools() []ToolDescriptor {
	return r.tools
}

// Lookup returns the descriptor registered under name, if any.
func (r *Registry) Lookup(name string) (ToolDescriptor, bool) {
	td, ok := r.byName[name]
	if !ok {
		return ToolDescriptor{}, false
	}
	return *td, true
}

// Dispatch resolves toolName to its handler and invokes it. For a
// standalone testing-mode tool, action is ignored in favor of the
// bound action the tool was synthesized from; for a portmanteau tool,
// action comes from the caller's "action" parameter.
func (r *Registry) Dispatch(ctx context.Context, toolName, action string, raw json.RawMessage) (*mcptools.Result, error) {
	td, ok := r.byName[toolName]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
	if td.Standalone {
		action = td.boundAction
	}
	return td.handler.Dispatch(ctx, action, raw), nil
}
