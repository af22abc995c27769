//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// IsRunning returns the recorded PID and whether that process is alive.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil || pid <= 0 {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	// FindProcess opens a handle; a zero signal fails once the process is gone.
	err = proc.Signal(syscall.Signal(0))
	return pid, err == nil
}

// Signal stops the recorded daemon. Windows has no graceful signal for a
// detached process, so every sig terminates it.
func (p *PIDFile) Signal(_ syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("stop daemon %d: %w", pid, err)
	}
	return nil
}
