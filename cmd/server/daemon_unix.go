//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// setDaemonAttr detaches the child into its own session
func setDaemonAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
