package vbox

import (
	"fmt"
	"strconv"
	"strings"
)

// VMState is one of the recognized VirtualBox machine states.
type VMState string

const (
	StatePoweredOff VMState = "PoweredOff"
	StateRunning    VMState = "Running"
	StatePaused     VMState = "Paused"
	StateSaved      VMState = "Saved"
	StateAborted    VMState = "Aborted"
	StateStarting   VMState = "Starting"
	StateStopping   VMState = "Stopping"
	StateOther      VMState = "other"
)

// normalizeVMState maps VBoxManage's VMState= token to our VMState enum.
func normalizeVMState(raw string) VMState {
	switch strings.ToLower(raw) {
	case "poweroff", "poweredoff":
		return StatePoweredOff
	case "running":
		return StateRunning
	case "paused":
		return StatePaused
	case "saved":
		return StateSaved
	case "aborted":
		return StateAborted
	case "starting":
		return StateStarting
	case "stopping":
		return StateStopping
	default:
		return StateOther
	}
}

// Firmware is a VM's firmware type.
type Firmware string

const (
	FirmwareBIOS Firmware = "BIOS"
	FirmwareEFI  Firmware = "EFI"
)

// NATRule describes one port-forwarding rule on a NAT-type adapter.
type NATRule struct {
	Name       string `json:"name"`
	Protocol   string `json:"protocol"` // "tcp" | "udp"
	HostIP     string `json:"host_ip,omitempty"`
	HostPort   int    `json:"host_port"`
	GuestIP    string `json:"guest_ip,omitempty"`
	GuestPort  int    `json:"guest_port"`
}

// NetworkAdapter describes one of a VM's up to four NICs.
type NetworkAdapter struct {
	Slot            int       `json:"slot"`
	Type            string    `json:"type"` // nat|bridged|hostonly|intnet|natnetwork|null
	Backing         string    `json:"backing,omitempty"`
	MAC             string    `json:"mac,omitempty"`
	CableConnected  bool      `json:"cable_connected"`
	NATRules        []NATRule `json:"nat_rules,omitempty"`
}

// MediumAttachment describes one disk/DVD/floppy attached to a
// controller port/device.
type MediumAttachment struct {
	ControllerName string `json:"controller_name"`
	Port           int    `json:"port"`
	Device         int    `json:"device"`
	MediumType     string `json:"medium_type"` // hdd|dvd|floppy
	MediumPath     string `json:"medium_path,omitempty"`
	ReadOnly       bool   `json:"read_only"`
}

// StorageController describes one storage controller owned by a VM.
type StorageController struct {
	Name       string             `json:"name"`
	Bus        string             `json:"bus"` // IDE|SATA|SCSI|NVMe|USB|Floppy
	PortCount  int                `json:"port_count"`
	Attached   []MediumAttachment `json:"attached,omitempty"`
}

// SnapshotNode is one node in a VM's snapshot forest.
type SnapshotNode struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	CreationTime string          `json:"creation_time,omitempty"`
	ParentID     string          `json:"parent_id,omitempty"`
	Children     []*SnapshotNode `json:"children,omitempty"`
	Current      bool            `json:"current"`
}

// SnapshotTree is the forest returned by list_snapshots: normally a
// single root, but the type supports multiple roots defensively.
type SnapshotTree struct {
	Roots         []*SnapshotNode `json:"roots"`
	CurrentID     string          `json:"current_id,omitempty"`
}

// VMRecord is the full detail record for one virtual machine.
type VMRecord struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	State           VMState            `json:"state"`
	OSType          string             `json:"os_type"`
	MemoryMB        int                `json:"memory_mb"`
	CPUCount        int                `json:"cpu_count"`
	Firmware        Firmware           `json:"firmware"`
	DiskPaths       []string           `json:"disk_paths,omitempty"`
	NetworkAdapters []NetworkAdapter   `json:"network_adapters,omitempty"`
	Snapshots       *SnapshotTree      `json:"snapshots,omitempty"`
	Metrics         *VMMetrics         `json:"metrics,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// VMMetrics is the optional, on-demand resource usage snapshot for a
// running VM, populated only by system_management action=metrics.
type VMMetrics struct {
	CPULoadPct  float64 `json:"cpu_load_pct"`
	MemUsedMB   int     `json:"mem_used_mb"`
	DiskIOBytes int64   `json:"disk_io_bytes"`
	NetIOBytes  int64   `json:"net_io_bytes"`
}

// VMSummary is the lighter-weight record returned by list_vms.
type VMSummary struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	State VMState `json:"state"`
}

// HostOnlyNetwork is a host-level virtual network resource shared
// across all VMs that attach to it.
type HostOnlyNetwork struct {
	Name         string `json:"name"`
	IPv4Address  string `json:"ipv4_address,omitempty"`
	IPv4Netmask  string `json:"ipv4_netmask,omitempty"`
	DHCPEnabled  bool   `json:"dhcp_enabled"`
}

// HostInfo is the structured result of system_management action=host_info.
type HostInfo struct {
	VBoxVersion string `json:"vbox_version"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	CPUCount    int    `json:"cpu_count"`
	MemoryMB    int    `json:"memory_mb"`
	Kernel      string `json:"kernel,omitempty"`
}

// OSTypeDescriptor is one entry from `VBoxManage list ostypes`.
type OSTypeDescriptor struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	FamilyID    string `json:"family_id,omitempty"`
	Is64Bit     bool   `json:"is_64_bit"`
}

// --- Builders: parsed KVRecord/TableRecord → typed records ---

// BuildVMRecord constructs a VMRecord from a showvminfo
// --machinereadable dump. Cross-field validation: a NIC slot with
// type="null" contributes no NetworkAdapter.
func BuildVMRecord(kv *KVRecord) (*VMRecord, error) {
	name, ok := kv.Get("name")
	if !ok {
		return nil, NewError(KindParseError, "showvminfo output missing mandatory field 'name'")
	}
	uuid, ok := kv.Get("UUID")
	if !ok {
		return nil, NewError(KindParseError, "showvminfo output missing mandatory field 'UUID'")
	}

	rec := &VMRecord{
		ID:     uuid,
		Name:   name,
		OSType: firstNonEmpty(kv, "ostype"),
	}

	if raw, ok := kv.Get("VMState"); ok {
		rec.State = normalizeVMState(raw)
	} else {
		rec.State = StateOther
	}

	if raw, ok := kv.Get("memory"); ok {
		rec.MemoryMB, _ = strconv.Atoi(raw)
	}
	if raw, ok := kv.Get("cpus"); ok {
		rec.CPUCount, _ = strconv.Atoi(raw)
	}
	if raw, ok := kv.Get("firmware"); ok && strings.EqualFold(raw, "efi") {
		rec.Firmware = FirmwareEFI
	} else {
		rec.Firmware = FirmwareBIOS
	}

	rec.NetworkAdapters = buildNetworkAdapters(kv)
	rec.DiskPaths = buildDiskPaths(kv)

	if tree, err := BuildSnapshotTree(kv); err == nil && tree != nil {
		rec.Snapshots = tree
	}

	return rec, nil
}

func firstNonEmpty(kv *KVRecord, key string) string {
	v, _ := kv.Get(key)
	return v
}

func buildNetworkAdapters(kv *KVRecord) []NetworkAdapter {
	var adapters []NetworkAdapter
	for slot := 0; slot < 4; slot++ {
		typeKey := fmt.Sprintf("nic%d", slot+1)
		typ, ok := kv.Get(typeKey)
		if !ok || strings.EqualFold(typ, "none") || strings.EqualFold(typ, "null") {
			continue
		}
		adapter := NetworkAdapter{Slot: slot, Type: strings.ToLower(typ)}
		if mac, ok := kv.Get(fmt.Sprintf("macaddress%d", slot+1)); ok {
			adapter.MAC = mac
		}
		if connected, ok := kv.Get(fmt.Sprintf("cableconnected%d", slot+1)); ok {
			adapter.CableConnected = strings.EqualFold(connected, "on")
		}
		backingKeys := map[string]string{
			"bridged":    fmt.Sprintf("bridgeadapter%d", slot+1),
			"hostonly":   fmt.Sprintf("hostonlyadapter%d", slot+1),
			"intnet":     fmt.Sprintf("intnet%d", slot+1),
			"natnetwork": fmt.Sprintf("nat-network%d", slot+1),
		}
		if bk, ok := backingKeys[adapter.Type]; ok {
			if v, ok := kv.Get(bk); ok {
				adapter.Backing = v
			}
		}
		adapter.NATRules = buildNATRules(kv, slot+1)
		adapters = append(adapters, adapter)
	}
	return adapters
}

// buildNATRules parses "Forwarding(n)"="name,protocol,hostip,hostport,guestip,guestport"
// entries. VBoxManage does not key these by NIC slot in machine-readable
// output, so all rules are surfaced on NIC 1 by convention; slot is kept
// for call-site symmetry with buildNetworkAdapters.
func buildNATRules(kv *KVRecord, slot int) []NATRule {
	if slot != 1 {
		return nil
	}
	var rules []NATRule
	for _, key := range kv.Order {
		if !strings.HasPrefix(key, "Forwarding(") {
			continue
		}
		val, ok := kv.Get(key)
		if !ok {
			continue
		}
		parts := strings.Split(val, ",")
		if len(parts) != 6 {
			continue
		}
		hostPort, _ := strconv.Atoi(parts[3])
		guestPort, _ := strconv.Atoi(parts[5])
		rules = append(rules, NATRule{
			Name:      parts[0],
			Protocol:  strings.ToLower(parts[1]),
			HostIP:    parts[2],
			HostPort:  hostPort,
			GuestIP:   parts[4],
			GuestPort: guestPort,
		})
	}
	return rules
}

var diskSuffixes = []string{".vdi", ".vmdk", ".vhd", ".vhdx"}

// buildDiskPaths collects attached-medium paths from
// "<Controller>-<port>-<device>"="<path>" entries, skipping the
// parallel "...-ImageUUID-..." entries VBoxManage emits alongside them.
func buildDiskPaths(kv *KVRecord) []string {
	var paths []string
	for _, key := range kv.Order {
		if strings.Contains(key, "ImageUUID") || !looksLikeAttachmentKey(key) {
			continue
		}
		v, ok := kv.Get(key)
		if !ok {
			continue
		}
		lower := strings.ToLower(v)
		for _, suffix := range diskSuffixes {
			if strings.HasSuffix(lower, suffix) {
				paths = append(paths, v)
				break
			}
		}
	}
	return paths
}

func looksLikeAttachmentKey(key string) bool {
	// e.g. "SATA Controller-0-0", "IDE Controller-1-0"
	return strings.Contains(key, "-") && !strings.HasPrefix(key, "Snapshot") &&
		!strings.HasPrefix(key, "Forwarding") && !strings.HasPrefix(key, "nic")
}

// BuildSnapshotTree reconstructs the snapshot forest from
// showvminfo --machinereadable's SnapshotName-<n>/SnapshotUUID-<n>/
// SnapshotParentUUID-<n>/CurrentSnapshotUUID fields.
func BuildSnapshotTree(kv *KVRecord) (*SnapshotTree, error) {
	byID := make(map[string]*SnapshotNode)
	var order []string

	for _, key := range kv.Order {
		if !strings.HasPrefix(key, "SnapshotName-") {
			continue
		}
		idx := strings.TrimPrefix(key, "SnapshotName-")
		name, _ := kv.Get(key)
		uuid, ok := kv.Get("SnapshotUUID-" + idx)
		if !ok {
			return nil, NewError(KindParseError, "snapshot %q missing SnapshotUUID-%s", name, idx)
		}
		node := &SnapshotNode{ID: uuid, Name: name}
		if desc, ok := kv.Get("SnapshotDescription-" + idx); ok {
			node.Description = desc
		}
		if parent, ok := kv.Get("SnapshotParentUUID-" + idx); ok {
			node.ParentID = parent
		}
		byID[uuid] = node
		order = append(order, uuid)
	}

	if len(order) == 0 {
		return nil, nil
	}

	current, _ := kv.Get("CurrentSnapshotUUID")

	tree := &SnapshotTree{CurrentID: current}
	for _, id := range order {
		node := byID[id]
		if node.ID == current {
			node.Current = true
		}
		if node.ParentID == "" {
			tree.Roots = append(tree.Roots, node)
			continue
		}
		parent, ok := byID[node.ParentID]
		if !ok {
			tree.Roots = append(tree.Roots, node) // orphaned, still surfaced
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return tree, nil
}

// BuildHostOnlyNetworks parses `list hostonlyifs` tabular output.
func BuildHostOnlyNetworks(records []TableRecord) []HostOnlyNetwork {
	var nets []HostOnlyNetwork
	for _, r := range records {
		name := r["Name"]
		if name == "" {
			continue
		}
		nets = append(nets, HostOnlyNetwork{
			Name:        name,
			IPv4Address: r["IPAddress"],
			IPv4Netmask: r["NetworkMask"],
			DHCPEnabled: strings.EqualFold(r["DHCP"], "Enabled"),
		})
	}
	return nets
}

// BuildOSTypes parses `list ostypes` tabular output.
func BuildOSTypes(records []TableRecord) []OSTypeDescriptor {
	var types []OSTypeDescriptor
	for _, r := range records {
		id := r["ID"]
		if id == "" {
			continue
		}
		types = append(types, OSTypeDescriptor{
			ID:          id,
			Description: r["Description"],
			FamilyID:    r["Family ID"],
			Is64Bit:     strings.Contains(strings.ToLower(r["Description"]), "64-bit") || strings.HasSuffix(id, "_64"),
		})
	}
	return types
}
