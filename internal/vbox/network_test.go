package vbox

import (
	"context"
	"testing"
)

func TestConfigureNIC_RejectsOutOfRangeSlot(t *testing.T) {
	fr := newFakeRunner()
	o := newTestOrchestrator(fr)

	verr := o.ConfigureNIC(context.Background(), "web-01", 4, "nat", "", "", nil)
	if verr == nil || verr.Kind != KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", verr)
	}
}

func TestConfigureNIC_BuildsBridgedArgs(t *testing.T) {
	fr := newFakeRunner()
	o := newTestOrchestrator(fr)

	if verr := o.ConfigureNIC(context.Background(), "web-01", 0, "bridged", "eth0", "", nil); verr != nil {
		t.Fatal(verr)
	}
	args := fr.lastArgs()
	if len(args) < 4 || args[0] != "modifyvm" || args[2] != "--nic1" || args[3] != "bridged" {
		t.Fatalf("args: got %v", args)
	}
}

func TestAddPortForward_BuildsNatpfSpec(t *testing.T) {
	fr := newFakeRunner()
	o := newTestOrchestrator(fr)

	rule := NATRule{Name: "ssh", Protocol: "tcp", HostPort: 2222, GuestPort: 22}
	if verr := o.AddPortForward(context.Background(), "web-01", 0, rule); verr != nil {
		t.Fatal(verr)
	}
	args := fr.lastArgs()
	if len(args) != 4 || args[2] != "--natpf1" || args[3] != "ssh,tcp,,2222,,22" {
		t.Fatalf("args: got %v", args)
	}
}

func TestRemovePortForward_RejectsOutOfRangeSlot(t *testing.T) {
	fr := newFakeRunner()
	o := newTestOrchestrator(fr)

	verr := o.RemovePortForward(context.Background(), "web-01", -1, "ssh")
	if verr == nil || verr.Kind != KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", verr)
	}
}

func TestListNetworks_ParsesHostOnlyIfs(t *testing.T) {
	fr := newFakeRunner()
	fr.responses["list"] = &RunResult{ExitCode: 0, Stdout: sampleTable}
	o := newTestOrchestrator(fr)

	nets, verr := o.ListNetworks(context.Background())
	if verr != nil {
		t.Fatal(verr)
	}
	if len(nets) != 2 {
		t.Fatalf("networks: got %d", len(nets))
	}
}

func TestCreateHostOnlyNetwork_BuildsHostonlyifCreateArgs(t *testing.T) {
	fr := newFakeRunner()
	o := newTestOrchestrator(fr)

	if verr := o.CreateHostOnlyNetwork(context.Background(), NetworkHostOnly, ""); verr != nil {
		t.Fatal(verr)
	}
	args := fr.lastArgs()
	if len(args) < 2 || args[0] != "hostonlyif" || args[1] != "create" {
		t.Fatalf("args: got %v", args)
	}
}

func TestCreateHostOnlyNetwork_NATNetworkVariant(t *testing.T) {
	fr := newFakeRunner()
	o := newTestOrchestrator(fr)

	if verr := o.CreateHostOnlyNetwork(context.Background(), NetworkNATNet, "natnet1"); verr != nil {
		t.Fatal(verr)
	}
	args := fr.lastArgs()
	if len(args) < 2 || args[0] != "natnetwork" || args[1] != "add" {
		t.Fatalf("args: got %v", args)
	}
}
