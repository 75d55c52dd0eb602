//go:build unix

package engine

import (
	"os/exec"
	"syscall"
)

// setProcGroup runs the service in its own process group so killing it also
// stops the JVM children it spawns.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
