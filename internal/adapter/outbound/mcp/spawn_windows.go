//go:build windows

package mcp

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// setSpawnAttrs places the upstream subprocess in its own process
// group. A console Ctrl+C then reaches only the proxy, which shuts
// the child down through its stdin pipe.
func setSpawnAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}
