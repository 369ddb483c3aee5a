package vbox

import (
	"context"
	"path/filepath"
	"testing"
)

const sampleHostInfo = `Host Information:

Host time:           2026-07-30T00:00:00
Processor count:     8
Processor online count: 8
Memory size:          32768 MByte
Memory available:     12000 MByte
`

func TestHostInfo_ParsesProcessorAndMemory(t *testing.T) {
	fr := newFakeRunner()
	fr.responses["list"] = &RunResult{ExitCode: 0, Stdout: sampleHostInfo}
	fr.responses["--version"] = &RunResult{ExitCode: 0, Stdout: "7.0.18r162988\n"}
	o := newTestOrchestrator(fr)

	info, verr := o.HostInfo(context.Background())
	if verr != nil {
		t.Fatal(verr)
	}
	if info.CPUCount != 8 {
		t.Fatalf("cpu count: got %d", info.CPUCount)
	}
	if info.MemoryMB != 32768 {
		t.Fatalf("memory: got %d", info.MemoryMB)
	}
	if info.VBoxVersion != "7.0.18r162988" {
		t.Fatalf("version: got %q", info.VBoxVersion)
	}
}

func TestVBoxVersion_TrimsOutput(t *testing.T) {
	fr := newFakeRunner()
	fr.responses["--version"] = &RunResult{ExitCode: 0, Stdout: "7.0.18r162988\n"}
	o := newTestOrchestrator(fr)

	ver, verr := o.VBoxVersion(context.Background())
	if verr != nil {
		t.Fatal(verr)
	}
	if ver != "7.0.18r162988" {
		t.Fatalf("version: got %q", ver)
	}
}

func TestListOSTypes_ParsesTable(t *testing.T) {
	fr := newFakeRunner()
	fr.responses["list"] = &RunResult{ExitCode: 0, Stdout: "ID:    Ubuntu_64\nDescription: Ubuntu (64-bit)\n\n"}
	o := newTestOrchestrator(fr)

	types, verr := o.ListOSTypes(context.Background())
	if verr != nil {
		t.Fatal(verr)
	}
	if len(types) != 1 || types[0].ID != "Ubuntu_64" {
		t.Fatalf("types: got %+v", types)
	}
}

func TestGetMetrics_ParsesMetricsQuery(t *testing.T) {
	fr := newFakeRunner()
	fr.responses["metrics"] = &RunResult{ExitCode: 0, Stdout: "CPU/Load/User: 12.5%\nRAM/Usage/Used: 204800 kB\n\n"}
	o := newTestOrchestrator(fr)

	metrics, verr := o.GetMetrics(context.Background(), "web-01")
	if verr != nil {
		t.Fatal(verr)
	}
	if metrics.CPULoadPct != 12.5 {
		t.Fatalf("cpu load: got %v", metrics.CPULoadPct)
	}
}

func TestScreenshot_RejectsMissingParentDir(t *testing.T) {
	fr := newFakeRunner()
	o := newTestOrchestrator(fr)

	verr := o.Screenshot(context.Background(), "web-01", "/nonexistent/dir/shot.png")
	if verr == nil || verr.Kind != KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", verr)
	}
}

func TestScreenshot_InvokesScreenshotpng(t *testing.T) {
	fr := newFakeRunner()
	o := newTestOrchestrator(fr)

	dir := t.TempDir()
	dest := filepath.Join(dir, "shot.png")
	if verr := o.Screenshot(context.Background(), "web-01", dest); verr != nil {
		t.Fatal(verr)
	}
	args := fr.lastArgs()
	if len(args) < 2 || args[0] != "controlvm" || args[1] != "web-01" {
		t.Fatalf("args: got %v", args)
	}
}
