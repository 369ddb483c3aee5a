package vbox

import "errors"

// ErrBinaryNotFound is returned when the configured VBoxManage path
// does not exist or is not executable.
var ErrBinaryNotFound = errors.New("vboxmanage binary not found")

// ErrSpawnFailed is returned for OS-level spawn errors other than a
// missing or non-executable binary (e.g. resource exhaustion).
var ErrSpawnFailed = errors.New("spawn failed")
