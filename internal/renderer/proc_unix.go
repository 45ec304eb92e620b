//go:build unix

package renderer

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the engine in its own process group and makes
// cancellation kill the whole group, so helpers the engine forks die with it.
func configureProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
