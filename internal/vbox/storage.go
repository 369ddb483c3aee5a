package vbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// CreateController adds a storage controller of the given bus type.
func (o *Orchestrator) CreateController(ctx context.Context, vmRef, name string, bus string) *Error {
	return AsError(o.withVMLock(ctx, vmRef, func() error {
		_, verr := o.runWrite(ctx, "storagectl (add)", "storagectl", vmRef,
			"--name", name, "--add", strings.ToLower(bus), "--controller", controllerChipset(bus))
		return verr
	}))
}

// RemoveController detaches and removes a named storage controller.
func (o *Orchestrator) RemoveController(ctx context.Context, vmRef, name string) *Error {
	return AsError(o.withVMLock(ctx, vmRef, func() error {
		_, verr := o.runWrite(ctx, "storagectl (remove)", "storagectl", vmRef, "--name", name, "--remove")
		return verr
	}))
}

// ListControllers parses showvminfo's storagecontroller* fields and
// the attached-medium entries for each.
func (o *Orchestrator) ListControllers(ctx context.Context, vmRef string) ([]StorageController, *Error) {
	res, verr := o.runQuery(ctx, "showvminfo (storage)", "showvminfo", vmRef, "--machinereadable")
	if verr != nil {
		return nil, verr
	}
	kv, err := ParseKV(res.Stdout)
	if err != nil {
		return nil, AsError(err)
	}
	return buildStorageControllers(kv), nil
}

func buildStorageControllers(kv *KVRecord) []StorageController {
	var controllers []StorageController
	for i := 0; ; i++ {
		nameKey := fmt.Sprintf("storagecontrollername%d", i)
		name, ok := kv.Get(nameKey)
		if !ok {
			break
		}
		ctrl := StorageController{Name: name}
		if ctype, ok := kv.Get(fmt.Sprintf("storagecontrollertype%d", i)); ok {
			ctrl.Bus = strings.ToUpper(ctype)
			for _, bus := range []string{"SATA", "SCSI", "NVMe", "USB", "Floppy", "IDE"} {
				if strings.EqualFold(controllerChipset(bus), ctype) {
					ctrl.Bus = bus
					break
				}
			}
		}
		if pc, ok := kv.Get(fmt.Sprintf("storagecontrollerportcount%d", i)); ok {
			ctrl.PortCount, _ = strconv.Atoi(pc)
		}
		ctrl.Attached = buildAttachmentsForController(kv, name)
		controllers = append(controllers, ctrl)
	}
	return controllers
}

func buildAttachmentsForController(kv *KVRecord, controllerName string) []MediumAttachment {
	var attachments []MediumAttachment
	prefix := controllerName + "-"
	for _, key := range kv.Order {
		if !strings.HasPrefix(key, prefix) || strings.Contains(key, "ImageUUID") {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		parts := strings.SplitN(rest, "-", 2)
		if len(parts) != 2 {
			continue
		}
		port, err1 := strconv.Atoi(parts[0])
		device, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			continue
		}
		path, ok := kv.Get(key)
		if !ok {
			continue
		}
		attachments = append(attachments, MediumAttachment{
			ControllerName: controllerName,
			Port:           port,
			Device:         device,
			MediumType:     mediumTypeFromPath(path),
			MediumPath:     path,
		})
	}
	return attachments
}

func mediumTypeFromPath(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".iso"):
		return "dvd"
	case strings.HasSuffix(lower, ".img"):
		return "floppy"
	default:
		return "hdd"
	}
}

func controllerChipset(bus string) string {
	switch strings.ToUpper(bus) {
	case "SATA":
		return "IntelAhci"
	case "SCSI":
		return "LsiLogic"
	case "NVME":
		return "NVMe"
	case "USB":
		return "USB"
	case "FLOPPY":
		return "I82078"
	default:
		return "PIIX4"
	}
}

// ListDisks returns the disk-type medium attachments across all
// controllers on vmRef.
func (o *Orchestrator) ListDisks(ctx context.Context, vmRef string) ([]MediumAttachment, *Error) {
	controllers, verr := o.ListControllers(ctx, vmRef)
	if verr != nil {
		return nil, verr
	}
	var disks []MediumAttachment
	for _, c := range controllers {
		for _, a := range c.Attached {
			if a.MediumType == "hdd" {
				disks = append(disks, a)
			}
		}
	}
	return disks, nil
}

// CreateMedium allocates a new virtual disk image file.
func (o *Orchestrator) CreateMedium(ctx context.Context, path string, sizeMB int, format string) *Error {
	if sizeMB < 1 {
		return NewError(KindInvalidArgument, "disk size must be positive, got %d", sizeMB)
	}
	if format == "" {
		format = "VDI"
	}
	_, verr := o.runWrite(ctx, "createmedium", "createmedium", "disk",
		"--filename", path, "--size", strconv.Itoa(sizeMB), "--format", format)
	return verr
}

// AttachDisk attaches an existing medium to a (controller, port, device)
// slot on vmRef.
func (o *Orchestrator) AttachDisk(ctx context.Context, vmRef, controllerName string, port, device int, mediumPath string) *Error {
	return AsError(o.withVMLock(ctx, vmRef, func() error {
		_, verr := o.runWrite(ctx, "storageattach", "storageattach", vmRef,
			"--storagectl", controllerName,
			"--port", strconv.Itoa(port),
			"--device", strconv.Itoa(device),
			"--type", "hdd",
			"--medium", mediumPath)
		return verr
	}))
}
