//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs does nothing on Windows; there is no session to detach from.
func setDaemonAttrs(_ *exec.Cmd) {}

// shutdownSignals are the signals that stop a running daemon.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// Windows delivers both as process termination.
func sigTERM() syscall.Signal { return syscall.SIGTERM }

func sigKILL() syscall.Signal { return syscall.SIGKILL }
