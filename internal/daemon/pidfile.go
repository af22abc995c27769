package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File names the background server keeps in the state directory.
const (
	PIDFileName = "shamescroll-serve.pid"
	LogFileName = "shamescroll-serve.log"
)

// PIDPath returns the PID file location under stateDir.
func PIDPath(stateDir string) string {
	return filepath.Join(stateDir, PIDFileName)
}

// LogPath returns the background server log location under stateDir.
func LogPath(stateDir string) string {
	return filepath.Join(stateDir, LogFileName)
}

// PIDFile manages the PID file of the background server.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process's PID.
func (p *PIDFile) Write() error {
	return p.WritePID(os.Getpid())
}

// WritePID records pid, creating the state directory if needed. The file is
// replaced atomically so a concurrent reader never sees a partial PID.
func (p *PIDFile) WritePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.Path)
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Release removes the PID file only if it still names this process, so a
// server shutting down late cannot delete its successor's file.
func (p *PIDFile) Release() error {
	pid, err := p.Read()
	if err != nil || pid != os.Getpid() {
		return nil
	}
	return p.Remove()
}

// ClearStale removes a PID file whose process is gone. It reports whether
// a file was removed.
func (p *PIDFile) ClearStale() (bool, error) {
	if _, err := os.Stat(p.Path); err != nil {
		return false, nil
	}
	if _, running := p.IsRunning(); running {
		return false, nil
	}
	return true, p.Remove()
}
