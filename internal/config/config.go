// Package config loads vboxmcp's runtime configuration from the
// environment and resolves the VBoxManage binary.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// ToolMode selects which tools the Tool Registry exposes.
type ToolMode string

const (
	// ModeProduction registers only the five portmanteau tools (plus
	// hyperv_management when the host reports Hyper-V capability).
	ModeProduction ToolMode = "production"
	// ModeTesting registers the portmanteau tools and one standalone
	// tool per action, for fine-grained exercise.
	ModeTesting ToolMode = "testing"
)

// Config holds vboxmcp's runtime configuration.
type Config struct {
	// ToolMode controls Tool Registry population.
	ToolMode ToolMode

	// VBoxInstallPath is the directory containing the VBoxManage binary.
	// Empty means search PATH.
	VBoxInstallPath string

	// VBoxUserHome is VirtualBox's home directory (VBOX_USER_HOME), passed
	// to the subprocess environment whitelist — the orchestrator never
	// reads or writes files under it directly, only VBoxManage does.
	VBoxUserHome string

	// LogLevel is the minimum level emitted by the structured logger.
	LogLevel string

	// QueryTimeout bounds read-only VBoxManage invocations.
	QueryTimeout time.Duration

	// WriteTimeout bounds mutating VBoxManage invocations.
	WriteTimeout time.Duration

	// TerminateGrace is how long the Process Runner waits after sending
	// the terminate signal before escalating to a kill.
	TerminateGrace time.Duration

	// JobRetention is how long terminal jobs are retained before the
	// Job Tracker's reaper evicts them.
	JobRetention time.Duration

	// MaxRetainedJobs bounds the Job Tracker's in-memory job map.
	MaxRetainedJobs int
}

// Load builds a Config from the process environment, applying defaults
// for anything unset. It never invokes VBoxManage.
func Load() *Config {
	cfg := &Config{
		ToolMode:        ModeProduction,
		VBoxInstallPath: os.Getenv("VBOX_INSTALL_PATH"),
		VBoxUserHome:    os.Getenv("VBOX_USER_HOME"),
		LogLevel:        "info",
		QueryTimeout:    60 * time.Second,
		WriteTimeout:    15 * time.Minute,
		TerminateGrace:  5 * time.Second,
		JobRetention:    time.Hour,
		MaxRetainedJobs: 1000,
	}

	switch os.Getenv("TOOL_MODE") {
	case "testing", "all":
		cfg.ToolMode = ModeTesting
	default:
		cfg.ToolMode = ModeProduction
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}

	if cfg.VBoxUserHome == "" {
		home, _ := os.UserHomeDir()
		cfg.VBoxUserHome = filepath.Join(home, "VirtualBox VMs")
	}

	return cfg
}

// vboxManageBinaryName returns the platform-specific VBoxManage
// executable name.
func vboxManageBinaryName() string {
	if runtime.GOOS == "windows" {
		return "VBoxManage.exe"
	}
	return "VBoxManage"
}

// ResolveVBoxManage locates the VBoxManage binary. Search order:
//  1. VBOX_INSTALL_PATH joined with the platform executable name.
//  2. PATH.
func (c *Config) ResolveVBoxManage() (string, error) {
	name := vboxManageBinaryName()

	if c.VBoxInstallPath != "" {
		candidate := filepath.Join(c.VBoxInstallPath, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}

	return "", fmt.Errorf("%s not found: set VBOX_INSTALL_PATH or add it to PATH", name)
}

// SubprocessEnv builds the whitelisted environment for a VBoxManage
// invocation. Locale is pinned so textual output parsing stays
// deterministic across hosts.
func (c *Config) SubprocessEnv() []string {
	env := []string{
		"LANG=C",
		"LC_ALL=C",
	}
	if c.VBoxInstallPath != "" {
		env = append(env, "VBOX_INSTALL_PATH="+c.VBoxInstallPath)
	}
	if c.VBoxUserHome != "" {
		env = append(env, "VBOX_USER_HOME="+c.VBoxUserHome)
	}
	return env
}
