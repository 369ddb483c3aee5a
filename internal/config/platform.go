package config

import (
	"os/exec"
	"runtime"
)

// Platform describes host facts the Tool Registry and Discovery
// Surface need in order to decide which tools to expose. Detection
// never shells out to VBoxManage or PowerShell to do real work — it
// only probes for the presence of binaries/services.
type Platform struct {
	OS   string // runtime.GOOS
	Arch string // runtime.GOARCH

	// HyperVCapable is true only on Windows hosts where the Hyper-V
	// management service appears to be present. hyperv_management is
	// registered if and only if this is true.
	HyperVCapable bool
}

// servicePresence abstracts the one piece of the world this probe reads,
// so tests can substitute a fake host without shelling out.
type servicePresence func(service string) bool

// DetectPlatform probes the host for capability facts used by the Tool
// Registry. lookup, if nil, defaults to checking PATH for a
// Hyper-V-management-capable PowerShell cmdlet host (powershell.exe /
// pwsh) — a stand-in for the real "Get-Service vmms" probe, abstracted
// behind an interface so the check never runs in non-Windows tests.
func DetectPlatform(lookup servicePresence) Platform {
	p := Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if p.OS != "windows" {
		return p
	}

	if lookup == nil {
		lookup = defaultHyperVPresence
	}
	p.HyperVCapable = lookup("vmms")
	return p
}

// defaultHyperVPresence is the real-host probe: it looks for a
// PowerShell host capable of querying the vmms service, without
// actually invoking Get-Service (that happens lazily, only when
// hyperv_management tools are called).
func defaultHyperVPresence(_ string) bool {
	if _, err := exec.LookPath("powershell.exe"); err == nil {
		return true
	}
	_, err := exec.LookPath("pwsh")
	return err == nil
}
