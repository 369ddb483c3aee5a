// Package obslog wires vboxmcp's structured logging. Every component
// logs through hclog rather than fmt/log so severity filtering and
// machine-parseable fields are available uniformly; logs always go to
// stderr so they never interleave with the JSON-RPC stdout stream the
// MCP harness owns.
package obslog

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// New builds the root logger for the process, named "vboxmcp", at the
// given level ("debug", "info", "warning", "error"; unrecognized
// values fall back to "info").
func New(level string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:            "vboxmcp",
		Level:           parseLevel(level),
		Output:          os.Stderr,
		IncludeLocation: false,
	})
}

func parseLevel(level string) hclog.Level {
	switch level {
	case "debug":
		return hclog.Debug
	case "info", "":
		return hclog.Info
	case "warning", "warn":
		return hclog.Warn
	case "error":
		return hclog.Error
	default:
		return hclog.Info
	}
}
