// SPDX-License-Identifier: MIT

// Package procgroup spawns subprocesses as process-group leaders and
// terminates the whole tree, SIGTERM first, SIGKILL after a grace period.
// Used for the ffmpeg decoders the audio sources run.
package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/airwaveio/airwave/internal/log"
)

// Terminate gracefully stops a process group. It sends SIGTERM, waits for
// the process to exit via waitCh, and escalates to SIGKILL after grace.
// It consumes and returns the error from waitCh. Safe on nil commands.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	logger := log.WithComponent("procgroup")

	// Kill calls on an already-exited process are harmless (ESRCH).
	if err := Kill(cmd, syscall.SIGTERM); err != nil {
		logger.Warn().Err(err).Int("pid", cmd.Process.Pid).Msg("SIGTERM failed")
	}

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
		logger.Warn().Int("pid", cmd.Process.Pid).Msg("grace period exceeded, sending SIGKILL to process group")
		if err := Kill(cmd, syscall.SIGKILL); err != nil {
			logger.Warn().Err(err).Int("pid", cmd.Process.Pid).Msg("SIGKILL failed")
		}
		// SIGKILL frees a blocked process; the Wait result still matters.
		return <-waitCh
	}
}
