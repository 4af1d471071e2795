package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PIDFile records the server's process id on disk so deploy scripts can
// find and signal a running doom-server.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PIDFile at the given path. Nothing is written until
// Write is called.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Write stores the current process id, creating parent directories as
// needed.
func (p *PIDFile) Write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	return os.WriteFile(p.path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.path)
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// ReadPID parses a PID file written by Write.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid value: %d", pid)
	}
	return pid, nil
}
