package vbox

import "context"

// CreateSnapshot takes a snapshot of vmRef. Live snapshots are allowed
// while Running, per the state-machine guard table.
func (o *Orchestrator) CreateSnapshot(ctx context.Context, vmRef, name, description string) (*SnapshotNode, *Error) {
	if name == "" {
		return nil, NewError(KindInvalidArgument, "snapshot name must not be empty")
	}
	if containsPathSeparator(name) {
		return nil, NewError(KindInvalidArgument, "snapshot name %q must not contain a path separator", name)
	}

	var node *SnapshotNode
	err := o.withVMLock(ctx, vmRef, func() error {
		state, verr := o.currentState(ctx, vmRef)
		if verr != nil {
			return verr
		}
		if gerr := guardTransition(state, opSnapshot); gerr != nil {
			return gerr
		}

		args := []string{"snapshot", vmRef, "take", name}
		if description != "" {
			args = append(args, "--description", description)
		}
		if _, verr := o.runWrite(ctx, "snapshot take", args...); verr != nil {
			return verr
		}

		tree, verr := o.ListSnapshots(ctx, vmRef)
		if verr != nil {
			return verr
		}
		node = findSnapshotByName(tree, name)
		if node == nil {
			return NewError(KindInternalError, "snapshot %q created but not found afterward", name)
		}
		return nil
	})
	if err != nil {
		return nil, AsError(err)
	}
	return node, nil
}

// RestoreSnapshot makes snapshotRef the VM's current snapshot. Refused
// on a Running VM per the guard table.
func (o *Orchestrator) RestoreSnapshot(ctx context.Context, vmRef, snapshotRef string) *Error {
	return AsError(o.withVMLock(ctx, vmRef, func() error {
		state, verr := o.currentState(ctx, vmRef)
		if verr != nil {
			return verr
		}
		if gerr := guardTransition(state, opRestore); gerr != nil {
			return gerr
		}
		_, verr = o.runWrite(ctx, "snapshot restore", "snapshot", vmRef, "restore", snapshotRef)
		return verr
	}))
}

// DeleteSnapshot merges snapshotRef's differencing disk into its
// parent. May run long if a large merge is required — onProgress, if
// non-nil, is called with the percent parsed from each line of merge
// progress as it streams from VBoxManage.
func (o *Orchestrator) DeleteSnapshot(ctx context.Context, vmRef, snapshotRef string, onProgress func(int)) *Error {
	return AsError(o.withVMLock(ctx, vmRef, func() error {
		_, verr := o.runWriteStreaming(ctx, "snapshot delete", onProgress, "snapshot", vmRef, "delete", snapshotRef)
		return verr
	}))
}

// ListSnapshots reconstructs the snapshot forest from showvminfo.
func (o *Orchestrator) ListSnapshots(ctx context.Context, vmRef string) (*SnapshotTree, *Error) {
	res, verr := o.runQuery(ctx, "showvminfo (snapshots)", "showvminfo", vmRef, "--machinereadable")
	if verr != nil {
		return nil, verr
	}
	kv, err := ParseKV(res.Stdout)
	if err != nil {
		return nil, AsError(err)
	}
	tree, err := BuildSnapshotTree(kv)
	if err != nil {
		return nil, AsError(err)
	}
	if tree == nil {
		return &SnapshotTree{}, nil
	}
	return tree, nil
}

func findSnapshotByName(tree *SnapshotTree, name string) *SnapshotNode {
	if tree == nil {
		return nil
	}
	var walk func(nodes []*SnapshotNode) *SnapshotNode
	walk = func(nodes []*SnapshotNode) *SnapshotNode {
		for _, n := range nodes {
			if n.Name == name {
				return n
			}
			if found := walk(n.Children); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(tree.Roots)
}

func containsPathSeparator(s string) bool {
	for _, r := range s {
		if r == '/' || r == '\\' {
			return true
		}
	}
	return false
}
