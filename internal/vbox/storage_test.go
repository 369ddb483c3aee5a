package vbox

import (
	"context"
	"testing"
)

const sampleStorageKV = `name="web-01"
UUID="u-1"
storagecontrollername0="SATA Controller"
storagecontrollertype0="IntelAhci"
storagecontrollerportcount0="2"
"SATA Controller-0-0"="/vms/web-01/disk.vdi"
"SATA Controller-ImageUUID-0-0"="ignored"
"SATA Controller-1-0"="/vms/web-01/install.iso"
`

func TestListControllers_ParsesNameBusPortCount(t *testing.T) {
	fr := newFakeRunner()
	fr.responses["showvminfo"] = &RunResult{ExitCode: 0, Stdout: sampleStorageKV}
	o := newTestOrchestrator(fr)

	controllers, verr := o.ListControllers(context.Background(), "web-01")
	if verr != nil {
		t.Fatal(verr)
	}
	if len(controllers) != 1 {
		t.Fatalf("controllers: got %d", len(controllers))
	}
	c := controllers[0]
	if c.Name != "SATA Controller" || c.Bus != "SATA" || c.PortCount != 2 {
		t.Fatalf("controller: got %+v", c)
	}
	if len(c.Attached) != 2 {
		t.Fatalf("attached: got %d", len(c.Attached))
	}
}

func TestListDisks_ExcludesNonHDDMedia(t *testing.T) {
	fr := newFakeRunner()
	fr.responses["showvminfo"] = &RunResult{ExitCode: 0, Stdout: sampleStorageKV}
	o := newTestOrchestrator(fr)

	disks, verr := o.ListDisks(context.Background(), "web-01")
	if verr != nil {
		t.Fatal(verr)
	}
	if len(disks) != 1 || disks[0].MediumPath != "/vms/web-01/disk.vdi" {
		t.Fatalf("disks: got %+v", disks)
	}
}

func TestCreateMedium_RejectsNonPositiveSize(t *testing.T) {
	fr := newFakeRunner()
	o := newTestOrchestrator(fr)

	verr := o.CreateMedium(context.Background(), "/tmp/x.vdi", 0, "")
	if verr == nil || verr.Kind != KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", verr)
	}
}

func TestAttachDisk_BuildsStorageattachArgs(t *testing.T) {
	fr := newFakeRunner()
	o := newTestOrchestrator(fr)

	if verr := o.AttachDisk(context.Background(), "web-01", "SATA Controller", 0, 0, "/vms/web-01/disk.vdi"); verr != nil {
		t.Fatal(verr)
	}
	args := fr.lastArgs()
	if len(args) < 2 || args[0] != "storageattach" || args[1] != "web-01" {
		t.Fatalf("args: got %v", args)
	}
}

func TestControllerChipset_KnownBuses(t *testing.T) {
	cases := map[string]string{"SATA": "IntelAhci", "SCSI": "LsiLogic", "IDE": "PIIX4", "NVMe": "NVMe"}
	for bus, want := range cases {
		if got := controllerChipset(bus); got != want {
			t.Fatalf("%s: got %q, want %q", bus, got, want)
		}
	}
}
