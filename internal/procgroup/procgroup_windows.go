// SPDX-License-Identifier: MIT

//go:build windows

package procgroup

import (
	"os/exec"
	"syscall"
)

// Set is a no-op on Windows; there is no POSIX process group to create.
func Set(cmd *exec.Cmd) {}

// Kill falls back to terminating the root process only.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
