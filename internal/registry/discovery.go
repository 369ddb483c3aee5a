package registry

// ToolSummary is the shape list_tools() returns to the harness: enough
// for a caller to pick a tool and action without a second round trip.
type ToolSummary struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
	Exposure    string   `json:"exposure"`
}

// Discovery is a pure read of an already-built Registry. It never
// invokes VBoxManage or PowerShell, and the platform probe that
// decided Hyper-V's presence already ran once, at Build time — not
// here and not on every call.
type Discovery struct {
	registry *Registry
}

// NewDiscovery wraps a built Registry.
func NewDiscovery(r *Registry) *Discovery {
	return &Discovery{registry: r}
}

// ListTools returns a summary of every registered tool, in
// registration order.
func (d *Discovery) ListTools() []ToolSummary {
	tools := d.registry.Tools()
	summaries := make([]ToolSummary, 0, len(tools))
	for _, td := range tools {
		actions := make([]string, len(td.Actions))
		for i, a := range td.Actions {
			actions[i] = a.Name
		}
		summaries = append(summaries, ToolSummary{
			Name:        td.Name,
			Category:    td.Category,
			Description: td.Description,
			Actions:     actions,
			Exposure:    td.Exposure,
		})
	}
	return summaries
}

// Describe returns the full descriptor for one tool, including each
// action's parameter schema.
func (d *Discovery) Describe(name string) (ToolDescriptor, bool) {
	return d.registry.Lookup(name)
}
