//go:build !windows

package mcp

import (
	"os/exec"
	"syscall"
)

// setSpawnAttrs places the upstream subprocess in its own process
// group. A terminal Ctrl+C then reaches only the proxy, which shuts
// the child down through its stdin pipe.
func setSpawnAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
